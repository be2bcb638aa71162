package consensus

import (
	"sort"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// New directions
// ════════════════════════════════════════════════════════════════════

// priorKeys collects every identity key mentioned by earlier artifacts,
// both as stored and as a normalized display-name key, so a source that
// drops a fund code later cannot resurrect an old item as new.
func priorKeys(prior []*models.DailyConsensusArtifact) map[string]bool {
	seen := map[string]bool{}
	for _, art := range prior {
		if art == nil {
			continue
		}
		for _, it := range art.Items {
			seen[it.Key] = true
			if k := normalize.ItemKey(it.DisplayName); k != "" {
				seen[k] = true
			}
		}
		for _, nd := range art.NewDirections {
			seen[nd.Key] = true
			if k := normalize.ItemKey(nd.DisplayName); k != "" {
				seen[k] = true
			}
		}
	}
	return seen
}

// buildNewDirections tags today's first appearances: plan items and
// explicit theme proposals that match nothing in the taxonomy and
// nothing in the lookback window. A renamed spelling of a known
// instrument is not a new direction.
func (b *Builder) buildNewDirections(date string, reports []*models.SourceReport, items []models.ConsensusItemResult, prior []*models.DailyConsensusArtifact) []models.NewDirection {
	seen := priorKeys(prior)

	var out []models.NewDirection
	index := map[string]int{}

	for i := range items {
		it := &items[i]
		if b.tax.HasItem(it.Key, it.DisplayName) {
			continue
		}
		if _, _, ok := b.tax.MatchItem(it.DisplayName, b.cfg.Similarity, b.cfg.SimilarityRelaxed); ok {
			continue
		}
		nameKey := normalize.ItemKey(it.DisplayName)
		if seen[it.Key] || (nameKey != "" && seen[nameKey]) {
			continue
		}
		nd := models.NewDirection{
			Key:         it.Key,
			DisplayName: it.DisplayName,
			FirstSeen:   date,
		}
		for _, op := range it.Opinions {
			nd.Sources = append(nd.Sources, op.Source)
		}
		index[it.Key] = len(out)
		if nameKey != "" {
			index[nameKey] = len(out)
		}
		out = append(out, nd)
	}

	for _, r := range reports {
		for _, p := range r.NewDirections {
			key := normalize.ItemKey(p.Theme)
			if key == "" || seen[key] {
				continue
			}
			if b.tax.HasItem("", p.Theme) {
				continue
			}
			if _, _, ok := b.tax.MatchItem(p.Theme, b.cfg.Similarity, b.cfg.SimilarityRelaxed); ok {
				continue
			}
			pos, ok := index[key]
			if !ok {
				pos = -1
				for j := range out {
					if normalize.SimilarEnough(key, normalize.ItemKey(out[j].DisplayName), b.cfg.Similarity, b.cfg.SimilarityRelaxed) {
						pos = j
						break
					}
				}
			}
			if pos < 0 {
				pos = len(out)
				out = append(out, models.NewDirection{Key: key, DisplayName: p.Theme, FirstSeen: date})
				index[key] = pos
			}
			out[pos].Sources = appendUnique(out[pos].Sources, r.Source)
			if out[pos].Rationale == "" {
				out[pos].Rationale = p.Rationale
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	for i := range out {
		sort.Strings(out[i].Sources)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
