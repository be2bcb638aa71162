package models

import (
	"reflect"
	"time"
)

// ConsensusState classifies cross-source agreement for one entity.
type ConsensusState string

const (
	Consistent ConsensusState = "consistent"
	Divergent  ConsensusState = "divergent"
)

// EntityKind distinguishes category-level from item-level entities.
type EntityKind string

const (
	KindCategory EntityKind = "category"
	KindItem     EntityKind = "item"
)

// RatioOpinion is one source's allocation opinion for a category.
type RatioOpinion struct {
	Source string  `json:"source"`
	Ratio  float64 `json:"ratio"`
}

// ConsensusCategoryResult is the per-category agreement verdict for one
// day. Opinions come only from sources that mention the category;
// silent sources are excluded, never counted as zero.
type ConsensusCategoryResult struct {
	Category string         `json:"category"`
	Opinions []RatioOpinion `json:"opinions"` // sorted by source name
	Min      float64        `json:"min"`
	Max      float64        `json:"max"`
	Mean     float64        `json:"mean"`
	Spread   float64        `json:"spread"` // max - min
	State    ConsensusState `json:"state"`
}

// ItemOpinion is one source's plan parameters for an item.
type ItemOpinion struct {
	Source          string  `json:"source"`
	FundName        string  `json:"fund_name"`
	SubCategory     string  `json:"sub_category"`
	RatioInCategory float64 `json:"ratio_in_category"`
	WeeklyAmount    float64 `json:"weekly_amount,omitempty"`
	Day             Weekday `json:"day,omitempty"`
}

// ConsensusItemResult is the per-item agreement verdict for one day.
// Items are joined across sources by fund code when present, else by
// normalized fund name.
type ConsensusItemResult struct {
	Key         string         `json:"key"` // fund code, else normalized name
	DisplayName string         `json:"display_name"`
	Category    string         `json:"category"`
	SubCategory string         `json:"sub_category"` // modal across opinions
	Opinions    []ItemOpinion  `json:"opinions"`     // sorted by source name
	Supporting  []string       `json:"supporting"`   // sources backing the modal parameters
	Omitting    []string       `json:"omitting"`     // usable sources without the item
	MeanRatio   float64        `json:"mean_ratio"`   // mean ratio_in_category of supporters
	State       ConsensusState `json:"state"`
}

// NewDirection is an item or theme with no prior appearance in stored
// artifacts or the reference taxonomy.
type NewDirection struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	FirstSeen   string   `json:"first_seen"` // ISO date
	Sources     []string `json:"sources"`    // sorted
	Rationale   string   `json:"rationale,omitempty"`
}

// CategoryShift is a day-over-day change in a category's mean ratio.
type CategoryShift struct {
	Category string  `json:"category"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
	Delta    float64 `json:"delta"`
}

// DivergenceFact names an entity whose opinions spread widest.
type DivergenceFact struct {
	Kind   EntityKind `json:"kind"`
	Key    string     `json:"key"`
	Spread float64    `json:"spread"`
}

// SummaryFacts carries the bounded, structured inputs for narration.
// The engine never authors prose; a summarizer may.
type SummaryFacts struct {
	SourceCount       int              `json:"source_count"`
	CategoryCount     int              `json:"category_count"`
	ItemCount         int              `json:"item_count"`
	ConsistentItems   int              `json:"consistent_items"`
	DivergentItems    int              `json:"divergent_items"`
	NewDirectionCount int              `json:"new_direction_count"`
	TopShifts         []CategoryShift  `json:"top_shifts,omitempty"`      // vs previous artifact, capped
	TopDivergences    []DivergenceFact `json:"top_divergences,omitempty"` // widest spreads, capped
}

// RunMeta identifies the run that produced an artifact. Excluded from
// semantic equality: two runs over identical inputs differ only here.
type RunMeta struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DailyConsensusArtifact is the cross-source verdict for one date.
// Keyed uniquely by date; immutable once written; replaced only under
// an explicit force operation.
type DailyConsensusArtifact struct {
	Date          string                    `json:"date"`
	Sources       []string                  `json:"sources"` // usable sources, sorted
	Categories    []ConsensusCategoryResult `json:"categories"`
	Items         []ConsensusItemResult     `json:"items"`
	NewDirections []NewDirection            `json:"new_directions,omitempty"`
	Facts         SummaryFacts              `json:"facts"`
	Narration     string                    `json:"narration,omitempty"` // summarizer output, bounded
	Meta          RunMeta                   `json:"meta"`
}

// Category returns the category result by name, or nil.
func (a *DailyConsensusArtifact) Category(name string) *ConsensusCategoryResult {
	for i := range a.Categories {
		if a.Categories[i].Category == name {
			return &a.Categories[i]
		}
	}
	return nil
}

// Item returns the item result by identity key, or nil.
func (a *DailyConsensusArtifact) Item(key string) *ConsensusItemResult {
	for i := range a.Items {
		if a.Items[i].Key == key {
			return &a.Items[i]
		}
	}
	return nil
}

// SemanticallyEquals reports whether two daily artifacts carry the
// same verdicts. Run metadata is ignored, so a forced re-run over
// identical inputs compares equal to the artifact it replaced.
func (a *DailyConsensusArtifact) SemanticallyEquals(b *DailyConsensusArtifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	ca, cb := *a, *b
	ca.Meta, cb.Meta = RunMeta{}, RunMeta{}
	return reflect.DeepEqual(ca, cb)
}
