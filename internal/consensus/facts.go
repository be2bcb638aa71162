package consensus

import (
	"math"
	"sort"

	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Summary facts
// ════════════════════════════════════════════════════════════════════

// latestPrior picks the most recent artifact strictly before date.
func latestPrior(prior []*models.DailyConsensusArtifact, date string) *models.DailyConsensusArtifact {
	var best *models.DailyConsensusArtifact
	for _, art := range prior {
		if art == nil || art.Date >= date {
			continue
		}
		if best == nil || art.Date > best.Date {
			best = art
		}
	}
	return best
}

// buildFacts derives the bounded, structured inputs for narration. The
// builder states facts; it never authors prose.
func (b *Builder) buildFacts(art *models.DailyConsensusArtifact, prev *models.DailyConsensusArtifact) models.SummaryFacts {
	facts := models.SummaryFacts{
		SourceCount:       len(art.Sources),
		CategoryCount:     len(art.Categories),
		ItemCount:         len(art.Items),
		NewDirectionCount: len(art.NewDirections),
	}
	for _, it := range art.Items {
		if it.State == models.Consistent {
			facts.ConsistentItems++
		} else {
			facts.DivergentItems++
		}
	}

	if prev != nil {
		var shifts []models.CategoryShift
		for _, c := range art.Categories {
			pc := prev.Category(c.Category)
			if pc == nil {
				continue
			}
			delta := utils.Round4(c.Mean - pc.Mean)
			if delta == 0 {
				continue
			}
			shifts = append(shifts, models.CategoryShift{
				Category: c.Category,
				From:     pc.Mean,
				To:       c.Mean,
				Delta:    delta,
			})
		}
		sort.Slice(shifts, func(i, j int) bool {
			di, dj := math.Abs(shifts[i].Delta), math.Abs(shifts[j].Delta)
			if di != dj {
				return di > dj
			}
			return shifts[i].Category < shifts[j].Category
		})
		if b.cfg.MaxFacts > 0 && len(shifts) > b.cfg.MaxFacts {
			shifts = shifts[:b.cfg.MaxFacts]
		}
		facts.TopShifts = shifts
	}

	var div []models.DivergenceFact
	for _, c := range art.Categories {
		if c.State == models.Divergent {
			div = append(div, models.DivergenceFact{Kind: models.KindCategory, Key: c.Category, Spread: c.Spread})
		}
	}
	for _, it := range art.Items {
		if it.State != models.Divergent || len(it.Opinions) < 2 {
			continue // a single-opinion item diverges by omission, not by spread
		}
		div = append(div, models.DivergenceFact{Kind: models.KindItem, Key: it.Key, Spread: utils.Round4(opinionSpread(it.Opinions))})
	}
	sort.Slice(div, func(i, j int) bool {
		if div[i].Spread != div[j].Spread {
			return div[i].Spread > div[j].Spread
		}
		if div[i].Kind != div[j].Kind {
			return div[i].Kind == models.KindCategory
		}
		return div[i].Key < div[j].Key
	})
	if b.cfg.MaxFacts > 0 && len(div) > b.cfg.MaxFacts {
		div = div[:b.cfg.MaxFacts]
	}
	facts.TopDivergences = div

	return facts
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 0 {
		return (s[n/2-1] + s[n/2]) / 2
	}
	return s[n/2]
}

func meanOpinionRatio(ops []models.ItemOpinion) float64 {
	if len(ops) == 0 {
		return 0
	}
	sum := 0.0
	for _, op := range ops {
		sum += op.RatioInCategory
	}
	return sum / float64(len(ops))
}

func opinionSpread(ops []models.ItemOpinion) float64 {
	if len(ops) == 0 {
		return 0
	}
	min, max := ops[0].RatioInCategory, ops[0].RatioInCategory
	for _, op := range ops {
		if op.RatioInCategory < min {
			min = op.RatioInCategory
		}
		if op.RatioInCategory > max {
			max = op.RatioInCategory
		}
	}
	return max - min
}
