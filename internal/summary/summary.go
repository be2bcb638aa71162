// Package summary authors the short narration attached to daily
// exports. The engine only computes structured facts; a Summarizer
// turns them into bounded prose. The deterministic facts summarizer
// is the default. An OpenAI-compatible endpoint is optional and sits
// outside the deterministic core.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sipboard/sipboard/internal/config"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// MaxNarrationChars bounds any narration stored on an artifact.
const MaxNarrationChars = 600

// Summarizer turns one day's structured facts into narration.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, date string, facts models.SummaryFacts) (string, error)
}

// FromConfig builds the configured summarizer. Mode "none" returns
// nil: artifacts carry no narration.
func FromConfig(cfg config.SummarizerConfig) (Summarizer, error) {
	switch cfg.Mode {
	case "", "none":
		return nil, nil
	case "facts":
		return FactsSummarizer{}, nil
	case "openai":
		return NewHTTPSummarizer(cfg.Endpoint, cfg.APIKey,
			WithModel(cfg.Model),
			WithMaxTokens(cfg.MaxTokens),
			WithTimeout(time.Duration(cfg.TimeoutSec)*time.Second))
	default:
		return nil, fmt.Errorf("summary: unknown mode %q", cfg.Mode)
	}
}

// ════════════════════════════════════════════════════════════════════
// Facts summarizer
// ════════════════════════════════════════════════════════════════════

// FactsSummarizer renders a fixed sentence pattern over the facts. No
// external calls; identical input, identical output.
type FactsSummarizer struct{}

func (FactsSummarizer) Name() string { return "facts" }

func (FactsSummarizer) Summarize(_ context.Context, date string, f models.SummaryFacts) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Consensus %s: %d sources, %d categories, %d/%d items consistent.",
		date, f.SourceCount, f.CategoryCount, f.ConsistentItems, f.ItemCount)
	if f.NewDirectionCount > 0 {
		fmt.Fprintf(&sb, " New directions: %d.", f.NewDirectionCount)
	}
	if len(f.TopShifts) > 0 {
		s := f.TopShifts[0]
		fmt.Fprintf(&sb, " Top shift: %s %s (%s to %s).",
			s.Category, utils.FormatSignedPercent(s.Delta),
			utils.FormatRatio(s.From), utils.FormatRatio(s.To))
	}
	if len(f.TopDivergences) > 0 {
		d := f.TopDivergences[0]
		fmt.Fprintf(&sb, " Widest split: %s (spread %s).",
			d.Key, utils.FormatPercent(d.Spread))
	}
	return Bound(sb.String()), nil
}

// Bound trims narration to the storage limit on a rune boundary.
func Bound(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= MaxNarrationChars {
		return s
	}
	return string(r[:MaxNarrationChars-3]) + "..."
}
