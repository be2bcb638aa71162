// Package pipeline orchestrates sipboard runs: inbox discovery,
// parallel parsing, the taxonomy gate, consensus and trend builds,
// store writes, export rendering, and optional git publishing. Each
// run is a batch over one date or date range; the consensus builder is
// the barrier that all parses feed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sipboard/sipboard/internal/config"
	"github.com/sipboard/sipboard/internal/consensus"
	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/internal/parse"
	"github.com/sipboard/sipboard/internal/publish"
	"github.com/sipboard/sipboard/internal/store"
	"github.com/sipboard/sipboard/internal/summary"
	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/internal/trend"
	"github.com/sipboard/sipboard/pkg/models"
)

// gitPublisher is what the publish leg needs from a publisher.
type gitPublisher interface {
	Publish(ctx context.Context, message string, paths ...string) error
}

// Pipeline wires the engine's collaborators for one configured
// installation. Safe to reuse across runs.
type Pipeline struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	norm     *normalize.Normalizer
	parser   *parse.Parser
	tax      *taxonomy.Index
	builder  *consensus.Builder
	analyzer *trend.Analyzer
	store    *store.Store
	summ     summary.Summarizer

	newPublisher func(dryRun bool) gitPublisher
}

// Options wires the pipeline's collaborators. Config and Store are
// required. A nil Taxonomy means an empty reference set; a nil
// Summarizer disables narration.
type Options struct {
	Config     *config.Config
	Store      *store.Store
	Taxonomy   *taxonomy.Index
	Summarizer summary.Summarizer
	Logger     logrus.FieldLogger
}

// New builds a Pipeline from its collaborators.
func New(o Options) (*Pipeline, error) {
	if o.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if o.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	log := o.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	tax := o.Taxonomy
	if tax == nil {
		tax = taxonomy.NewIndex(&models.Taxonomy{})
	}

	norm := normalize.New(o.Config.Sources.Aliases)
	p := &Pipeline{
		cfg:    o.Config,
		log:    log,
		norm:   norm,
		parser: parse.New(norm),
		tax:    tax,
		builder: consensus.New(consensus.Config{
			TauCategory:       o.Config.Consensus.TauCategory,
			TauItem:           o.Config.Consensus.TauItem,
			Quorum:            o.Config.Consensus.Quorum,
			MaxFacts:          o.Config.Consensus.MaxFacts,
			Similarity:        o.Config.Consensus.Similarity,
			SimilarityRelaxed: o.Config.Consensus.SimilarityRelaxed,
		}, tax),
		analyzer: trend.New(trend.Config{Tolerance: o.Config.Trend.Tolerance}, tax),
		store:    o.Store,
		summ:     o.Summarizer,
	}
	p.newPublisher = func(dryRun bool) gitPublisher {
		return publish.New(o.Config.Paths.Exports,
			publish.WithRemote(o.Config.Publish.Remote),
			publish.WithBranch(o.Config.Publish.Branch),
			publish.WithDryRun(dryRun),
			publish.WithLogger(log),
		)
	}
	return p, nil
}

// ════════════════════════════════════════════════════════════════════
// Inbox discovery
// ════════════════════════════════════════════════════════════════════

// Document is one discovered advice file with its identity resolved.
// Everything downstream works from these keys, never from paths.
type Document struct {
	Date   string
	Source string // canonical
	Path   string
}

// Discover lists the advice documents for a date as explicit
// (date, source) keys, sorted by source. The source name is the file
// stem run through the alias table.
func (p *Pipeline) Discover(date string) ([]Document, error) {
	dir := filepath.Join(p.cfg.Paths.Inbox, date)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, NoInputError{Date: date, Dir: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: read inbox %s: %w", dir, err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw := strings.TrimSuffix(e.Name(), ".md")
		docs = append(docs, Document{
			Date:   date,
			Source: p.norm.Normalize(raw),
			Path:   filepath.Join(dir, e.Name()),
		})
	}
	if len(docs) == 0 {
		return nil, NoInputError{Date: date, Dir: dir}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

// missingSources returns the configured expected sources that produced
// no document, in configuration order.
func (p *Pipeline) missingSources(docs []Document) []string {
	present := make(map[string]bool, len(docs))
	for _, d := range docs {
		present[d.Source] = true
	}
	var missing []string
	for _, want := range p.cfg.Sources.Expected {
		if !present[p.norm.Normalize(want)] {
			missing = append(missing, want)
		}
	}
	return missing
}

// ════════════════════════════════════════════════════════════════════
// Parallel parsing
// ════════════════════════════════════════════════════════════════════

// parseAll parses the discovered documents concurrently. A failed
// source is excluded and collected, never fatal; only a canceled
// context aborts the batch. Surviving reports come back sorted by
// source.
func (p *Pipeline) parseAll(ctx context.Context, docs []Document) ([]*models.SourceReport, []error, error) {
	var (
		mu       sync.Mutex
		reports  []*models.SourceReport
		excluded []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(d.Path)
			if err == nil {
				var report *models.SourceReport
				if report, err = p.parser.Parse(d.Date, d.Source, raw); err == nil {
					p.logWarnings(d, report)
					mu.Lock()
					reports = append(reports, report)
					mu.Unlock()
					return nil
				}
			}
			p.log.WithFields(logrus.Fields{
				"date":   d.Date,
				"source": d.Source,
			}).Warnf("source excluded: %v", err)
			mu.Lock()
			excluded = append(excluded, fmt.Errorf("%s: %w", d.Source, err))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Source < reports[j].Source })
	return reports, excluded, nil
}

func (p *Pipeline) logWarnings(d Document, report *models.SourceReport) {
	for _, w := range report.Warnings {
		p.log.WithFields(logrus.Fields{
			"date":    d.Date,
			"source":  d.Source,
			"section": w.Section,
			"code":    string(w.Code),
		}).Warn(w.Detail)
	}
}
