// Package taxonomy loads the canonical reference data produced by the
// external spreadsheet conversion and validates per-source reports
// against it. Mismatches are reported as a structured diff and never
// auto-corrected.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/pkg/models"
)

// Load reads a taxonomy JSON file.
func Load(path string) (*models.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	var t models.Taxonomy
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	return &t, nil
}

// Index is a Taxonomy prepared for lookup: categories by name, items
// by fund code and by comparison key, and the canonical category
// order used for rendering.
type Index struct {
	categories map[string]bool
	order      map[string]int
	byCode     map[string]models.TaxonomyInstrument
	byKey      map[string]models.TaxonomyInstrument
	categoryOf map[string]string // item comparison key -> category name
}

// NewIndex builds the lookup structures for a taxonomy.
func NewIndex(t *models.Taxonomy) *Index {
	ix := &Index{
		categories: make(map[string]bool),
		order:      make(map[string]int),
		byCode:     make(map[string]models.TaxonomyInstrument),
		byKey:      make(map[string]models.TaxonomyInstrument),
		categoryOf: make(map[string]string),
	}
	for i, cat := range t.Categories {
		ix.categories[cat.Name] = true
		ix.order[cat.Name] = i
		for _, inst := range cat.Instruments {
			if inst.Code != "" {
				ix.byCode[inst.Code] = inst
			}
			key := normalize.ItemKey(inst.Name)
			ix.byKey[key] = inst
			ix.categoryOf[key] = cat.Name
		}
	}
	return ix
}

// HasCategory reports whether name is a canonical category.
func (ix *Index) HasCategory(name string) bool {
	return ix.categories[name]
}

// CategoryOrder returns the canonical position of a category, with
// unknown categories ordered last.
func (ix *Index) CategoryOrder(name string) int {
	if pos, ok := ix.order[name]; ok {
		return pos
	}
	return len(ix.order)
}

// HasItem reports whether an item is in the taxonomy, by code when
// available, else by comparison key.
func (ix *Index) HasItem(code, name string) bool {
	if code != "" {
		if _, ok := ix.byCode[code]; ok {
			return true
		}
	}
	_, ok := ix.byKey[normalize.ItemKey(name)]
	return ok
}

// MatchItem finds the taxonomy instrument closest to a display name.
// The bool reports whether the best candidate clears the similarity
// thresholds.
func (ix *Index) MatchItem(name string, strict, relaxed float64) (models.TaxonomyInstrument, float64, bool) {
	key := normalize.ItemKey(name)
	var (
		best    models.TaxonomyInstrument
		bestKey string
		bestSim = -1.0
	)
	for k, inst := range ix.byKey {
		if sim := normalize.Similarity(key, k); sim > bestSim {
			best, bestKey, bestSim = inst, k, sim
		}
	}
	if bestSim < 0 {
		return models.TaxonomyInstrument{}, 0, false
	}
	return best, bestSim, normalize.SimilarEnough(key, bestKey, strict, relaxed)
}

// Validate diffs each report's categories and items against the
// taxonomy. Items matched by similarity rather than exact key are
// listed as renamed-but-matched: they still need curation.
func Validate(date string, reports []*models.SourceReport, ix *Index, strict, relaxed float64) *models.TaxonomyDiff {
	diff := &models.TaxonomyDiff{Date: date}
	for _, report := range reports {
		diff.PerSource = append(diff.PerSource, diffSource(report, ix, strict, relaxed))
	}
	sort.Slice(diff.PerSource, func(i, j int) bool {
		return diff.PerSource[i].Source < diff.PerSource[j].Source
	})
	return diff
}

func diffSource(report *models.SourceReport, ix *Index, strict, relaxed float64) models.SourceDiff {
	d := models.SourceDiff{Source: report.Source}

	// Categories: extra in the report, missing from it.
	seenCats := make(map[string]bool)
	for _, a := range report.Allocations {
		seenCats[a.Category] = true
		if !ix.HasCategory(a.Category) {
			d.ExtraCategories = append(d.ExtraCategories, a.Category)
		}
	}
	for name := range ix.categories {
		if !seenCats[name] {
			d.MissingCategories = append(d.MissingCategories, name)
		}
	}

	// Items: exact code or key match is clean; a similarity match is
	// renamed-but-matched; anything else is extra.
	matchedKeys := make(map[string]bool)
	for _, entry := range report.Plan {
		if entry.FundCode != "" {
			if inst, ok := ix.byCode[entry.FundCode]; ok {
				canonKey := normalize.ItemKey(inst.Name)
				matchedKeys[canonKey] = true
				if normalize.ItemKey(entry.FundName) != canonKey {
					d.RenamedItems = append(d.RenamedItems, models.RenamedMatch{
						Raw:        entry.FundName,
						Canonical:  inst.Name,
						Similarity: normalize.Similarity(normalize.ItemKey(entry.FundName), canonKey),
					})
				}
				continue
			}
		}
		key := normalize.ItemKey(entry.FundName)
		if _, ok := ix.byKey[key]; ok {
			matchedKeys[key] = true
			continue
		}
		if inst, sim, ok := ix.MatchItem(entry.FundName, strict, relaxed); ok {
			matchedKeys[normalize.ItemKey(inst.Name)] = true
			d.RenamedItems = append(d.RenamedItems, models.RenamedMatch{
				Raw:        entry.FundName,
				Canonical:  inst.Name,
				Similarity: sim,
			})
			continue
		}
		d.ExtraItems = append(d.ExtraItems, entry.FundName)
	}
	for key, inst := range ix.byKey {
		if !matchedKeys[key] {
			d.MissingItems = append(d.MissingItems, inst.Name)
		}
	}

	sort.Strings(d.ExtraItems)
	sort.Strings(d.MissingItems)
	sort.Strings(d.ExtraCategories)
	sort.Strings(d.MissingCategories)
	sort.Slice(d.RenamedItems, func(i, j int) bool {
		return d.RenamedItems[i].Raw < d.RenamedItems[j].Raw
	})
	return d
}
