package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sipboard/sipboard/internal/render"
	"github.com/sipboard/sipboard/pkg/utils"
)

// RewriteResult reports what a rewrite run touched.
type RewriteResult struct {
	Rewritten []string // dates re-parsed, re-stored, re-rendered
	Skipped   []string // dates in range with no export on disk
}

// Rewrite re-parses previously exported daily documents, force-writes
// the recovered artifacts to the store, and re-renders them. This is
// the migration path after a renderer change: the store and the
// exports converge on the current format while run metadata stays as
// originally stamped, so an unchanged renderer rewrites byte-identical
// files.
//
// An empty from and to rewrites every exported date. Per-date failures
// are collected; the rest of the range still proceeds.
func (p *Pipeline) Rewrite(ctx context.Context, from, to string) (*RewriteResult, error) {
	var (
		dates []string
		err   error
	)
	if from == "" && to == "" {
		dates, err = p.ExportedDailyDates()
	} else {
		dates, err = utils.DateRange(from, to)
	}
	if err != nil {
		return nil, err
	}

	res := &RewriteResult{}
	var failures []error
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path := filepath.Join(p.cfg.Paths.Exports, "daily", date+".md")
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			res.Skipped = append(res.Skipped, date)
			continue
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", date, err))
			continue
		}

		art, err := render.ParseDaily(raw)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", date, err))
			continue
		}
		if art.Date != date {
			failures = append(failures, fmt.Errorf("%s: export carries date %s", date, art.Date))
			continue
		}

		if err := p.store.PutDaily(art, true); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", date, err))
			continue
		}
		if _, err := p.exportDaily(art); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", date, err))
			continue
		}
		res.Rewritten = append(res.Rewritten, date)
		p.log.WithField("date", date).Info("export rewritten")
	}

	// Force-writes leave stale value-log entries behind; reclaim them
	// once at the end of the batch.
	if len(res.Rewritten) > 0 {
		if err := p.store.GC(); err != nil {
			p.log.Warnf("store gc skipped: %v", err)
		}
	}
	return res, errors.Join(failures...)
}

// ExportedDailyDates lists the dates with a rendered daily export on
// disk, ascending. A missing export directory is an empty list.
func (p *Pipeline) ExportedDailyDates() ([]string, error) {
	dir := filepath.Join(p.cfg.Paths.Exports, "daily")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: read exports %s: %w", dir, err)
	}

	var dates []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".md")
		if e.IsDir() || !ok {
			continue
		}
		if _, err := utils.ParseDate(name); err != nil {
			continue
		}
		dates = append(dates, name)
	}
	sort.Strings(dates)
	return dates, nil
}
