// Package models defines the shared data types for sipboard: parsed
// per-source advice reports, daily consensus artifacts, weekly trend
// artifacts, and the reference taxonomy.
package models

// Weekday is a contribution day tag in an investment plan.
type Weekday string

const (
	Monday    Weekday = "Mon"
	Tuesday   Weekday = "Tue"
	Wednesday Weekday = "Wed"
	Thursday  Weekday = "Thu"
	Friday    Weekday = "Fri"
	Saturday  Weekday = "Sat"
	Sunday    Weekday = "Sun"
)

// Source is one advice-producing participant (e.g., one model vendor).
type Source struct {
	Name    string   `json:"name"`              // canonical name, e.g. "gemini"
	Aliases []string `json:"aliases,omitempty"` // raw spellings seen in the wild
}

// AllocationEntry is one row of a source's category-allocation table.
type AllocationEntry struct {
	Category           string  `json:"category"`
	Ratio              float64 `json:"ratio"` // 0.0 to 1.0
	WeeklyAmountTarget float64 `json:"weekly_amount_target,omitempty"`
}

// PlanEntry is one row of a source's per-item investment plan.
type PlanEntry struct {
	Category        string  `json:"category"`
	SubCategory     string  `json:"sub_category"`
	FundCode        string  `json:"fund_code,omitempty"` // leading zeros preserved, e.g. "007339"
	FundName        string  `json:"fund_name"`
	RatioInCategory float64 `json:"ratio_in_category"` // 0.0 to 1.0
	WeeklyAmount    float64 `json:"weekly_amount,omitempty"`
	Day             Weekday `json:"day,omitempty"`
	LongTermView    string  `json:"long_term_view,omitempty"`
	MidTermView     string  `json:"mid_term_view,omitempty"`
	ShortTermView   string  `json:"short_term_view,omitempty"`
	CurrentHolding  float64 `json:"current_holding,omitempty"`
}

// NewDirectionProposal is one row of a source's optional new-directions
// section: a theme the source suggests adding to the plan.
type NewDirectionProposal struct {
	Theme     string `json:"theme"`
	Rationale string `json:"rationale,omitempty"`
}

// WarningCode classifies a non-fatal finding during parsing.
type WarningCode string

const (
	WarnMalformedRow      WarningCode = "malformed_row"
	WarnDuplicateCategory WarningCode = "duplicate_category"
	WarnAllocationSum     WarningCode = "allocation_sum"
	WarnBadNumber         WarningCode = "bad_number"
	WarnBadWeekday        WarningCode = "bad_weekday"
)

// ReportWarning records a non-fatal parse finding with enough context
// to locate the offending input.
type ReportWarning struct {
	Code    WarningCode `json:"code"`
	Section string      `json:"section,omitempty"`
	Row     int         `json:"row,omitempty"` // 1-based data row within the section
	Detail  string      `json:"detail"`
}

// SourceReport is the typed form of one source's advice document for
// one date. Immutable once parsed.
type SourceReport struct {
	Date          string                 `json:"date"` // ISO date, e.g. "2026-08-25"
	Source        string                 `json:"source"`
	Allocations   []AllocationEntry      `json:"allocations"`
	Plan          []PlanEntry            `json:"plan"`
	NewDirections []NewDirectionProposal `json:"new_directions,omitempty"`
	Warnings      []ReportWarning        `json:"warnings,omitempty"`
}

// AllocationSum returns the sum of category ratios. Sources are not
// required to allocate exactly 1.0; deviations are flagged upstream.
func (r *SourceReport) AllocationSum() float64 {
	var sum float64
	for _, a := range r.Allocations {
		sum += a.Ratio
	}
	return sum
}
