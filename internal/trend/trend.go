// Package trend aggregates daily consensus artifacts over a date range
// into per-entity trend records and weekly new-direction tags.
package trend

import (
	"sort"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Analyzer
// ════════════════════════════════════════════════════════════════════

// Config carries the trend thresholds.
type Config struct {
	Tolerance float64 // band width for significant moves
}

// Analyzer builds weekly trend artifacts from stored dailies. Like the
// daily builder it is pure; the caller loads the range from the store.
type Analyzer struct {
	cfg Config
	tax *taxonomy.Index
}

func New(cfg Config, tax *taxonomy.Index) *Analyzer {
	if tax == nil {
		tax = taxonomy.NewIndex(&models.Taxonomy{})
	}
	return &Analyzer{cfg: cfg, tax: tax}
}

// BuildWeekly aggregates the dailies of start..end. Days without an
// artifact are reported missing and never interpolated. Meta is left
// zero for the caller to stamp.
func (a *Analyzer) BuildWeekly(start, end string, dailies []*models.DailyConsensusArtifact) (*models.WeeklyTrendArtifact, error) {
	dates, err := utils.DateRange(start, end)
	if err != nil {
		return nil, err
	}

	byDate := map[string]*models.DailyConsensusArtifact{}
	for _, d := range dailies {
		if d == nil {
			continue
		}
		byDate[d.Date] = d
	}

	art := &models.WeeklyTrendArtifact{
		StartDate:    start,
		EndDate:      end,
		SourceCounts: map[string]int{},
	}
	for _, date := range dates {
		d, ok := byDate[date]
		if !ok {
			art.DaysMissing = append(art.DaysMissing, date)
			continue
		}
		art.DaysPresent = append(art.DaysPresent, date)
		art.SourceCounts[date] = len(d.Sources)
	}
	if len(art.DaysPresent) == 0 {
		return nil, NoArtifactsError{Start: start, End: end}
	}

	art.Categories = a.categoryRecords(art.DaysPresent, byDate)
	art.Items = a.itemRecords(art.DaysPresent, byDate)
	art.NewDirections = weeklyDirections(art.DaysPresent, byDate)
	return art, nil
}

// ────────────────────────────────────────────────────────────────────
// Per-entity series
// ────────────────────────────────────────────────────────────────────

func (a *Analyzer) categoryRecords(days []string, byDate map[string]*models.DailyConsensusArtifact) []models.TrendRecord {
	series := map[string][]models.Observation{}
	for _, date := range days {
		for _, c := range byDate[date].Categories {
			series[c.Category] = append(series[c.Category], models.Observation{Date: date, Value: c.Mean, State: c.State})
		}
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := a.tax.CategoryOrder(names[i]), a.tax.CategoryOrder(names[j])
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})

	var records []models.TrendRecord
	for _, name := range names {
		records = append(records, a.record(name, models.KindCategory, name, series[name]))
	}
	return records
}

func (a *Analyzer) itemRecords(days []string, byDate map[string]*models.DailyConsensusArtifact) []models.TrendRecord {
	// An instrument may gain its fund code mid-week. Alias every
	// normalized display name to the coded key it co-occurred with so
	// the series does not split.
	alias := map[string]string{}
	for _, date := range days {
		for _, it := range byDate[date].Items {
			nk := normalize.ItemKey(it.DisplayName)
			if nk == "" || it.Key == nk {
				continue
			}
			if _, ok := alias[nk]; !ok {
				alias[nk] = it.Key
			}
		}
	}

	series := map[string][]models.Observation{}
	display := map[string]string{}
	for _, date := range days {
		for _, it := range byDate[date].Items {
			key := it.Key
			if c, ok := alias[key]; ok {
				key = c
			}
			series[key] = append(series[key], models.Observation{Date: date, Value: it.MeanRatio, State: it.State})
			display[key] = it.DisplayName // the latest observation names the record
		}
	}

	keys := make([]string, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var records []models.TrendRecord
	for _, key := range keys {
		records = append(records, a.record(key, models.KindItem, display[key], series[key]))
	}
	return records
}

func (a *Analyzer) record(key string, kind models.EntityKind, display string, obs []models.Observation) models.TrendRecord {
	rec := models.TrendRecord{
		Key:          key,
		Kind:         kind,
		DisplayName:  display,
		Observations: obs,
		Direction:    a.classify(obs),
		Transition:   transition(obs),
	}
	if len(obs) > 0 {
		rec.NetChange = utils.Round4(obs[len(obs)-1].Value - obs[0].Value)
	}
	return rec
}

func transition(obs []models.Observation) models.ConsensusTransition {
	tr := models.ConsensusTransition{DayCounts: map[models.ConsensusState]int{}}
	if len(obs) == 0 {
		return tr
	}
	tr.Start = obs[0].State
	tr.End = obs[len(obs)-1].State
	for _, o := range obs {
		tr.DayCounts[o.State]++
	}
	return tr
}
