package consensus

import (
	"math"
	"sort"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Identity join
// ════════════════════════════════════════════════════════════════════

// itemGroup accumulates one instrument's plan rows across sources while
// the identity join is in progress.
type itemGroup struct {
	key      string   // fund code when known, else the first normalized name key
	nameKeys []string // normalized name keys observed, first is primary
	bySource map[string]models.PlanEntry
}

func (g *itemGroup) hasNameKey(k string) bool {
	for _, nk := range g.nameKeys {
		if nk == k {
			return true
		}
	}
	return false
}

func (g *itemGroup) add(source string, e models.PlanEntry) {
	if k := normalize.ItemKey(e.FundName); k != "" && !g.hasNameKey(k) {
		g.nameKeys = append(g.nameKeys, k)
	}
	g.bySource[source] = e // a later duplicate row from the same source wins
}

// groupItems joins plan rows across sources. A fund code is a stronger
// identity than any name, so coded rows are grouped first; uncoded rows
// then attach by exact normalized name key, with a similarity match as
// fallback so spelling drift does not split an instrument.
func (b *Builder) groupItems(reports []*models.SourceReport) []*itemGroup {
	var groups []*itemGroup
	byCode := map[string]*itemGroup{}

	for _, r := range reports {
		for _, e := range r.Plan {
			if e.FundCode == "" {
				continue
			}
			g, ok := byCode[e.FundCode]
			if !ok {
				g = &itemGroup{key: e.FundCode, bySource: map[string]models.PlanEntry{}}
				byCode[e.FundCode] = g
				groups = append(groups, g)
			}
			g.add(r.Source, e)
		}
	}

	for _, r := range reports {
		for _, e := range r.Plan {
			if e.FundCode != "" {
				continue
			}
			nk := normalize.ItemKey(e.FundName)
			if nk == "" {
				continue // nothing identifiable to join on
			}
			g := b.matchGroup(groups, nk)
			if g == nil {
				g = &itemGroup{key: nk, bySource: map[string]models.PlanEntry{}}
				groups = append(groups, g)
			}
			g.add(r.Source, e)
		}
	}
	return groups
}

// matchGroup finds the group an uncoded row belongs to: exact name-key
// match first, then the most similar key above the thresholds.
func (b *Builder) matchGroup(groups []*itemGroup, nk string) *itemGroup {
	for _, g := range groups {
		if g.hasNameKey(nk) {
			return g
		}
	}
	var best *itemGroup
	bestSim := 0.0
	for _, g := range groups {
		for _, cand := range g.nameKeys {
			sim := normalize.Similarity(nk, cand)
			if sim > bestSim && normalize.SimilarEnough(nk, cand, b.cfg.Similarity, b.cfg.SimilarityRelaxed) {
				best, bestSim = g, sim
			}
		}
	}
	return best
}

// ════════════════════════════════════════════════════════════════════
// Per-item verdict
// ════════════════════════════════════════════════════════════════════

func (b *Builder) buildItems(reports []*models.SourceReport) []models.ConsensusItemResult {
	groups := b.groupItems(reports)
	var results []models.ConsensusItemResult
	for _, g := range groups {
		results = append(results, b.itemVerdict(g, reports))
	}
	sort.Slice(results, func(i, j int) bool {
		oi, oj := b.tax.CategoryOrder(results[i].Category), b.tax.CategoryOrder(results[j].Category)
		if oi != oj {
			return oi < oj
		}
		if results[i].Category != results[j].Category {
			return results[i].Category < results[j].Category
		}
		return results[i].Key < results[j].Key
	})
	return results
}

func (b *Builder) itemVerdict(g *itemGroup, reports []*models.SourceReport) models.ConsensusItemResult {
	res := models.ConsensusItemResult{Key: g.key}

	sources := make([]string, 0, len(g.bySource))
	for s := range g.bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	// Longest fund name wins the display slot; ties go alphabetically.
	for _, s := range sources {
		name := g.bySource[s].FundName
		if len(name) > len(res.DisplayName) ||
			(len(name) == len(res.DisplayName) && name != "" && name < res.DisplayName) {
			res.DisplayName = name
		}
	}

	res.Category = modalCategory(g, sources, b.tax)
	subKey, subDisplay := modalSub(g, sources)
	res.SubCategory = subDisplay

	for _, s := range sources {
		e := g.bySource[s]
		res.Opinions = append(res.Opinions, models.ItemOpinion{
			Source:          s,
			FundName:        e.FundName,
			SubCategory:     e.SubCategory,
			RatioInCategory: utils.Round4(e.RatioInCategory),
			WeeklyAmount:    utils.Round2(e.WeeklyAmount),
			Day:             e.Day,
		})
	}

	// Supporters back the modal sub-category with a ratio within the
	// tolerance of the supporter median. Sources that omit the item
	// count against quorum through the denominator, not as zeros.
	var members []models.ItemOpinion
	for _, op := range res.Opinions {
		if normalize.ItemKey(op.SubCategory) == subKey {
			members = append(members, op)
		}
	}
	ratios := make([]float64, len(members))
	for i, m := range members {
		ratios[i] = m.RatioInCategory
	}
	med := median(ratios)
	var supporters []models.ItemOpinion
	for _, m := range members {
		if math.Abs(m.RatioInCategory-med) <= b.cfg.TauItem {
			supporters = append(supporters, m)
		}
	}
	for _, s := range supporters {
		res.Supporting = append(res.Supporting, s.Source)
	}
	if len(supporters) > 0 {
		res.MeanRatio = utils.Round4(meanOpinionRatio(supporters))
	} else {
		res.MeanRatio = utils.Round4(meanOpinionRatio(members))
	}

	for _, r := range reports {
		if _, ok := g.bySource[r.Source]; !ok {
			res.Omitting = append(res.Omitting, r.Source)
		}
	}

	res.State = models.Divergent
	if float64(len(supporters))/float64(len(reports)) >= b.cfg.Quorum {
		res.State = models.Consistent
	}
	return res
}

// modalCategory picks the most common category across sources; ties go
// to taxonomy order, then name.
func modalCategory(g *itemGroup, sources []string, tax *taxonomy.Index) string {
	counts := map[string]int{}
	for _, s := range sources {
		counts[g.bySource[s].Category]++
	}
	best, bestN := "", -1
	for name, n := range counts {
		switch {
		case n > bestN:
			best, bestN = name, n
		case n == bestN:
			oi, oj := tax.CategoryOrder(name), tax.CategoryOrder(best)
			if oi < oj || (oi == oj && name < best) {
				best = name
			}
		}
	}
	return best
}

// modalSub buckets sub-categories by normalized key and returns the
// modal bucket's key plus its first raw spelling in source order.
func modalSub(g *itemGroup, sources []string) (key, display string) {
	counts := map[string]int{}
	first := map[string]string{}
	for _, s := range sources {
		raw := g.bySource[s].SubCategory
		k := normalize.ItemKey(raw)
		counts[k]++
		if _, ok := first[k]; !ok {
			first[k] = raw
		}
	}
	bestN := -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < key) {
			key, bestN = k, n
		}
	}
	return key, first[key]
}
