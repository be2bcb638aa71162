package models

import "reflect"

// TrendDirection classifies how an entity's value moved across a week.
type TrendDirection string

const (
	TrendUp           TrendDirection = "up"
	TrendDown         TrendDirection = "down"
	TrendStable       TrendDirection = "stable"
	TrendOscillating  TrendDirection = "oscillating"
	TrendInsufficient TrendDirection = "insufficient_data"
)

// Observation is one day's observed value and agreement state for an
// entity. Days without an observation are simply absent; values are
// never interpolated.
type Observation struct {
	Date  string         `json:"date"`
	Value float64        `json:"value"`
	State ConsensusState `json:"state"`
}

// ConsensusTransition records how an entity's agreement state opened
// and closed the range, and how many observed days each state held.
type ConsensusTransition struct {
	Start     ConsensusState         `json:"start"`
	End       ConsensusState         `json:"end"`
	DayCounts map[ConsensusState]int `json:"day_counts"`
}

// TrendRecord is one entity's week: its per-day observations, the
// derived direction, and its consensus transition.
type TrendRecord struct {
	Key          string              `json:"key"`
	Kind         EntityKind          `json:"kind"`
	DisplayName  string              `json:"display_name,omitempty"`
	Observations []Observation       `json:"observations"` // ascending by date, gaps allowed
	Direction    TrendDirection      `json:"direction"`
	NetChange    float64             `json:"net_change"` // last - first available value
	Transition   ConsensusTransition `json:"transition"`
}

// ConsistentDays counts observed days in the Consistent state.
func (r *TrendRecord) ConsistentDays() int {
	return r.Transition.DayCounts[Consistent]
}

// WeeklyNewDirection is a NewDirection merged across the range and
// annotated with whether it survived to the final day.
type WeeklyNewDirection struct {
	NewDirection
	Persisted bool `json:"persisted"`
}

// WeeklyTrendArtifact is the trend verdict over a requested contiguous
// date range. Missing days are reported, not fabricated. It references
// its constituent daily artifacts by date only.
type WeeklyTrendArtifact struct {
	StartDate     string               `json:"start_date"`
	EndDate       string               `json:"end_date"`
	DaysPresent   []string             `json:"days_present"` // ascending
	DaysMissing   []string             `json:"days_missing,omitempty"`
	SourceCounts  map[string]int       `json:"source_counts"` // date -> usable source count
	Categories    []TrendRecord        `json:"categories"`
	Items         []TrendRecord        `json:"items"`
	NewDirections []WeeklyNewDirection `json:"new_directions,omitempty"`
	Meta          RunMeta              `json:"meta"`
}

// RangeKey is the store key for a weekly artifact, e.g.
// "2026-08-18..2026-08-24".
func (a *WeeklyTrendArtifact) RangeKey() string {
	return a.StartDate + ".." + a.EndDate
}

// SemanticallyEquals reports whether two weekly artifacts carry the
// same trend verdicts, ignoring run metadata.
func (a *WeeklyTrendArtifact) SemanticallyEquals(b *WeeklyTrendArtifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	ca, cb := *a, *b
	ca.Meta, cb.Meta = RunMeta{}, RunMeta{}
	return reflect.DeepEqual(ca, cb)
}
