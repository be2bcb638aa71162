package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sipboard/sipboard/internal/consensus"
	"github.com/sipboard/sipboard/internal/render"
	"github.com/sipboard/sipboard/internal/store"
	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// DailyOptions control one daily build.
type DailyOptions struct {
	Force          bool // replace an existing artifact for the date
	AcceptMismatch bool // proceed past taxonomy drift
	Publish        bool // commit and push the export
	PublishDryRun  bool // run the publish checks, touch nothing
}

// Validate parses the date's documents and diffs them against the
// reference taxonomy. It never touches the store.
func (p *Pipeline) Validate(ctx context.Context, date string) (*models.TaxonomyDiff, error) {
	docs, err := p.Discover(date)
	if err != nil {
		return nil, err
	}
	reports, _, err := p.parseAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, consensus.InsufficientInputError{Date: date}
	}
	return taxonomy.Validate(date, reports, p.tax,
		p.cfg.Consensus.Similarity, p.cfg.Consensus.SimilarityRelaxed), nil
}

// BuildDaily runs the full daily batch for a date: discover, parse,
// gate on the taxonomy, build the consensus artifact, persist it,
// render the export, and optionally publish. The artifact is returned
// as stored.
func (p *Pipeline) BuildDaily(ctx context.Context, date string, opts DailyOptions) (*models.DailyConsensusArtifact, error) {
	runID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"run_id": runID, "date": date})
	log.Info("daily run started")

	if !opts.Force {
		exists, err := p.store.HasDaily(date)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, store.ExistsError{Key: date}
		}
	}

	docs, err := p.Discover(date)
	if err != nil {
		return nil, err
	}
	if missing := p.missingSources(docs); len(missing) > 0 {
		if !p.cfg.Sources.AllowPartial {
			return nil, MissingSourcesError{Date: date, Missing: missing}
		}
		log.WithField("missing", strings.Join(missing, ",")).Warn("expected sources absent")
	}

	reports, excluded, err := p.parseAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, consensus.InsufficientInputError{Date: date}
	}
	if len(reports) < 2 {
		log.Warn("fewer than two usable sources, consensus is single-voiced")
	}
	if len(excluded) > 0 {
		log.WithField("excluded", len(excluded)).Warn("some sources did not parse")
	}

	diff := taxonomy.Validate(date, reports, p.tax,
		p.cfg.Consensus.Similarity, p.cfg.Consensus.SimilarityRelaxed)
	if !diff.Clean() {
		if !opts.AcceptMismatch {
			return nil, TaxonomyMismatchError{Date: date, Diff: diff}
		}
		log.Warn("taxonomy mismatch accepted, proceeding")
	}

	prior, err := p.priorWindow(date)
	if err != nil {
		return nil, err
	}

	art, err := p.builder.BuildDaily(date, reports, prior)
	if err != nil {
		return nil, err
	}
	p.narrate(ctx, log, art)
	art.Meta = models.RunMeta{RunID: runID, GeneratedAt: time.Now().UTC()}

	if err := p.store.PutDaily(art, opts.Force); err != nil {
		return nil, err
	}
	path, err := p.exportDaily(art)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"sources": len(art.Sources),
		"items":   len(art.Items),
		"export":  path,
	}).Info("daily run complete")

	if opts.Publish || opts.PublishDryRun {
		message := fmt.Sprintf("sipboard: daily consensus %s", date)
		rel := filepath.Join("daily", date+".md")
		if err := p.newPublisher(opts.PublishDryRun).Publish(ctx, message, rel); err != nil {
			return nil, fmt.Errorf("publish daily %s: %w", date, err)
		}
	}
	return art, nil
}

// priorWindow loads the stored artifacts the new-direction check looks
// back over: the lookback_days window ending the day before date.
func (p *Pipeline) priorWindow(date string) ([]*models.DailyConsensusArtifact, error) {
	lookback := p.cfg.Consensus.LookbackDays
	if lookback < 1 {
		lookback = 1
	}
	start, err := utils.AddDays(date, -lookback)
	if err != nil {
		return nil, err
	}
	end, err := utils.AddDays(date, -1)
	if err != nil {
		return nil, err
	}
	return p.store.ListDailyRange(start, end)
}

// narrate asks the configured summarizer for bounded prose over the
// artifact's facts. Narration is an annotation: failure is a warning,
// never a failed run.
func (p *Pipeline) narrate(ctx context.Context, log logrus.FieldLogger, art *models.DailyConsensusArtifact) {
	if p.summ == nil {
		return
	}
	text, err := p.summ.Summarize(ctx, art.Date, art.Facts)
	if err != nil {
		log.WithField("summarizer", p.summ.Name()).Warnf("narration skipped: %v", err)
		return
	}
	art.Narration = text
}

func (p *Pipeline) exportDaily(art *models.DailyConsensusArtifact) (string, error) {
	dir := filepath.Join(p.cfg.Paths.Exports, "daily")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, art.Date+".md")
	if err := os.WriteFile(path, []byte(render.RenderDaily(art)), 0o644); err != nil {
		return "", fmt.Errorf("pipeline: write export %s: %w", path, err)
	}
	return path, nil
}
