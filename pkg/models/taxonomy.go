package models

// TaxonomyInstrument is one instrument in the reference taxonomy.
type TaxonomyInstrument struct {
	Code string `json:"code,omitempty"` // leading zeros preserved
	Name string `json:"name"`
}

// TaxonomyCategory groups the valid sub-categories and instruments of
// one top-level category.
type TaxonomyCategory struct {
	Name          string               `json:"name"`
	SubCategories []string             `json:"sub_categories,omitempty"`
	Instruments   []TaxonomyInstrument `json:"instruments"`
}

// Taxonomy is the canonical reference data produced by the external
// spreadsheet conversion. The engine only reads it.
type Taxonomy struct {
	Categories []TaxonomyCategory `json:"categories"`
}

// CategoryNames returns category names in declaration order. The
// declaration order is the canonical rendering order.
func (t *Taxonomy) CategoryNames() []string {
	names := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		names = append(names, c.Name)
	}
	return names
}

// RenamedMatch pairs a report spelling with the taxonomy name it was
// matched to by similarity rather than exact equality.
type RenamedMatch struct {
	Raw        string  `json:"raw"`
	Canonical  string  `json:"canonical"`
	Similarity float64 `json:"similarity"`
}

// SourceDiff is the taxonomy validation result for one source's
// report.
type SourceDiff struct {
	Source            string         `json:"source"`
	ExtraItems        []string       `json:"extra_items,omitempty"`   // in report, not in taxonomy
	MissingItems      []string       `json:"missing_items,omitempty"` // in taxonomy, not in report
	RenamedItems      []RenamedMatch `json:"renamed_items,omitempty"`
	ExtraCategories   []string       `json:"extra_categories,omitempty"`
	MissingCategories []string       `json:"missing_categories,omitempty"`
}

// Clean reports whether the source matched the taxonomy exactly.
// Renamed-but-matched entries are mismatches: they require curation.
func (d *SourceDiff) Clean() bool {
	return len(d.ExtraItems) == 0 && len(d.MissingItems) == 0 &&
		len(d.RenamedItems) == 0 &&
		len(d.ExtraCategories) == 0 && len(d.MissingCategories) == 0
}

// TaxonomyDiff is the validation verdict across all sources for one
// date.
type TaxonomyDiff struct {
	Date      string       `json:"date"`
	PerSource []SourceDiff `json:"per_source"`
}

// Clean reports whether every source matched the taxonomy.
func (d *TaxonomyDiff) Clean() bool {
	for i := range d.PerSource {
		if !d.PerSource[i].Clean() {
			return false
		}
	}
	return true
}
