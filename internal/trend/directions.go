package trend

import (
	"sort"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Weekly new directions
// ════════════════════════════════════════════════════════════════════

// weeklyDirections merges the range's new directions under their keys,
// keeping the earliest first-seen date, and tags each with whether it
// was still visible on the final observed day.
func weeklyDirections(days []string, byDate map[string]*models.DailyConsensusArtifact) []models.WeeklyNewDirection {
	merged := map[string]*models.WeeklyNewDirection{}
	for _, date := range days {
		for _, nd := range byDate[date].NewDirections {
			w, ok := merged[nd.Key]
			if !ok {
				dup := nd
				merged[nd.Key] = &models.WeeklyNewDirection{NewDirection: dup}
				continue
			}
			if nd.FirstSeen < w.FirstSeen {
				w.FirstSeen = nd.FirstSeen
			}
			for _, s := range nd.Sources {
				w.Sources = appendUnique(w.Sources, s)
			}
			if w.Rationale == "" {
				w.Rationale = nd.Rationale
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}

	finalKeys := presentKeys(byDate[days[len(days)-1]])

	out := make([]models.WeeklyNewDirection, 0, len(merged))
	for _, w := range merged {
		sort.Strings(w.Sources)
		w.Persisted = finalKeys[w.Key] || finalKeys[normalize.ItemKey(w.DisplayName)]
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// presentKeys indexes everything visible in one day's artifact: item
// keys, their normalized names, and the day's new-direction keys.
func presentKeys(art *models.DailyConsensusArtifact) map[string]bool {
	keys := map[string]bool{}
	if art == nil {
		return keys
	}
	for _, it := range art.Items {
		keys[it.Key] = true
		if k := normalize.ItemKey(it.DisplayName); k != "" {
			keys[k] = true
		}
	}
	for _, nd := range art.NewDirections {
		keys[nd.Key] = true
		if k := normalize.ItemKey(nd.DisplayName); k != "" {
			keys[k] = true
		}
	}
	return keys
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
