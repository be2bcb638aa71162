// Package consensus derives the cross-source daily verdict from parsed
// source reports: per-category and per-item agreement states, new
// directions, and the bounded facts that feed narration.
package consensus

import (
	"sort"

	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Builder
// ════════════════════════════════════════════════════════════════════

// Config carries the agreement thresholds.
type Config struct {
	TauCategory       float64 // max-min spread tolerated inside a consistent category
	TauItem           float64 // per-item ratio tolerance around the supporter median
	Quorum            float64 // supporters/usable needed for a consistent item
	MaxFacts          int     // cap on shifts and divergences in the summary facts
	Similarity        float64 // strict name-similarity threshold for item joins
	SimilarityRelaxed float64 // relaxed threshold when one key contains the other
}

// Builder turns one day's source reports into a DailyConsensusArtifact.
// It is pure: storage lookups happen in the caller, which supplies the
// prior artifacts the new-direction check needs.
type Builder struct {
	cfg Config
	tax *taxonomy.Index
}

func New(cfg Config, tax *taxonomy.Index) *Builder {
	if tax == nil {
		tax = taxonomy.NewIndex(&models.Taxonomy{})
	}
	return &Builder{cfg: cfg, tax: tax}
}

// BuildDaily computes the consensus artifact for date from the usable
// reports. prior holds stored artifacts from the lookback window, in
// any order. Meta is left zero for the caller to stamp.
func (b *Builder) BuildDaily(date string, reports []*models.SourceReport, prior []*models.DailyConsensusArtifact) (*models.DailyConsensusArtifact, error) {
	usable := make([]*models.SourceReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return nil, InsufficientInputError{Date: date}
	}
	for _, r := range usable {
		if r.Date != "" && r.Date != date {
			return nil, DateMismatchError{Date: date, Source: r.Source, Found: r.Date}
		}
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Source < usable[j].Source })

	sources := make([]string, len(usable))
	for i, r := range usable {
		sources[i] = r.Source
	}

	art := &models.DailyConsensusArtifact{
		Date:    date,
		Sources: sources,
	}
	art.Categories = b.buildCategories(usable)
	art.Items = b.buildItems(usable)
	art.NewDirections = b.buildNewDirections(date, usable, art.Items, prior)
	art.Facts = b.buildFacts(art, latestPrior(prior, date))
	return art, nil
}

// ────────────────────────────────────────────────────────────────────
// Per-category verdict
// ────────────────────────────────────────────────────────────────────

// buildCategories judges each category over the opinions of the sources
// that mention it. A silent source contributes nothing; silence is an
// unknown opinion, never a zero. All stored ratios are quantized to the
// artifact precision so rendering round-trips exactly.
func (b *Builder) buildCategories(reports []*models.SourceReport) []models.ConsensusCategoryResult {
	opinions := map[string][]models.RatioOpinion{}
	for _, r := range reports {
		for _, a := range r.Allocations {
			opinions[a.Category] = append(opinions[a.Category], models.RatioOpinion{Source: r.Source, Ratio: utils.Round4(a.Ratio)})
		}
	}

	names := make([]string, 0, len(opinions))
	for name := range opinions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := b.tax.CategoryOrder(names[i]), b.tax.CategoryOrder(names[j])
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})

	var results []models.ConsensusCategoryResult
	for _, name := range names {
		ops := opinions[name] // reports are source-sorted, so opinions are too
		res := models.ConsensusCategoryResult{Category: name, Opinions: ops}
		res.Min, res.Max = ops[0].Ratio, ops[0].Ratio
		sum := 0.0
		for _, op := range ops {
			if op.Ratio < res.Min {
				res.Min = op.Ratio
			}
			if op.Ratio > res.Max {
				res.Max = op.Ratio
			}
			sum += op.Ratio
		}
		res.Mean = utils.Round4(sum / float64(len(ops)))
		res.Spread = utils.Round4(res.Max - res.Min)
		res.State = models.Divergent
		if res.Spread <= b.cfg.TauCategory {
			res.State = models.Consistent
		}
		results = append(results, res)
	}
	return results
}
