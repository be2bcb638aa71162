package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sipboard/sipboard/internal/render"
	"github.com/sipboard/sipboard/internal/store"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// WeeklyOptions control one weekly build.
type WeeklyOptions struct {
	Force         bool
	Publish       bool
	PublishDryRun bool
}

// BuildWeekly aggregates the trailing window of stored dailies ending
// at end into a weekly trend artifact, persists it, and renders the
// export. days <= 0 takes the configured default window.
func (p *Pipeline) BuildWeekly(ctx context.Context, end string, days int, opts WeeklyOptions) (*models.WeeklyTrendArtifact, error) {
	if days <= 0 {
		days = p.cfg.Trend.Days
	}
	window, err := utils.TrailingRange(end, days)
	if err != nil {
		return nil, err
	}
	start := window[0]

	runID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"run_id": runID, "range": start + ".." + end})
	log.Info("weekly run started")

	if !opts.Force {
		exists, err := p.store.HasWeekly(start, end)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, store.ExistsError{Key: start + ".." + end}
		}
	}

	dailies, err := p.store.ListDailyRange(start, end)
	if err != nil {
		return nil, err
	}
	art, err := p.analyzer.BuildWeekly(start, end, dailies)
	if err != nil {
		return nil, err
	}
	art.Meta = models.RunMeta{RunID: runID, GeneratedAt: time.Now().UTC()}

	if err := p.store.PutWeekly(art, opts.Force); err != nil {
		return nil, err
	}
	path, err := p.exportWeekly(art)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"days_present": len(art.DaysPresent),
		"days_missing": len(art.DaysMissing),
		"export":       path,
	}).Info("weekly run complete")

	if opts.Publish || opts.PublishDryRun {
		message := fmt.Sprintf("sipboard: weekly trend %s", art.RangeKey())
		rel := filepath.Join("weekly", art.RangeKey()+".md")
		if err := p.newPublisher(opts.PublishDryRun).Publish(ctx, message, rel); err != nil {
			return nil, fmt.Errorf("publish weekly %s: %w", art.RangeKey(), err)
		}
	}
	return art, nil
}

func (p *Pipeline) exportWeekly(art *models.WeeklyTrendArtifact) (string, error) {
	dir := filepath.Join(p.cfg.Paths.Exports, "weekly")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, art.RangeKey()+".md")
	if err := os.WriteFile(path, []byte(render.RenderWeekly(art)), 0o644); err != nil {
		return "", fmt.Errorf("pipeline: write export %s: %w", path, err)
	}
	return path, nil
}
