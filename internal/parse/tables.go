package parse

import (
	"fmt"
	"strings"

	extast "github.com/yuin/goldmark/extension/ast"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// sumTolerance bounds how far a source's allocation ratios may drift
// from 1.0 before the report is flagged. Deviation is flagged, never
// rejected.
const sumTolerance = 0.02

// tableData is a pipe table reduced to trimmed cell text. Headers are
// lowercased for column matching.
type tableData struct {
	headers []string
	rows    [][]string
}

func readTable(t *extast.Table, source []byte) *tableData {
	td := &tableData{}
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		switch r := row.(type) {
		case *extast.TableHeader:
			for cell := r.FirstChild(); cell != nil; cell = cell.NextSibling() {
				td.headers = append(td.headers, strings.ToLower(strings.TrimSpace(nodeText(cell, source))))
			}
		case *extast.TableRow:
			var cells []string
			for cell := r.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, strings.TrimSpace(nodeText(cell, source)))
			}
			td.rows = append(td.rows, cells)
		}
	}
	return td
}

// findCol locates a column by header: exact match wins over substring
// match. Returns -1 when absent.
func findCol(headers []string, names ...string) int {
	for _, name := range names {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
	}
	for _, name := range names {
		for i, h := range headers {
			if strings.Contains(h, name) {
				return i
			}
		}
	}
	return -1
}

// cell returns a row's column text, tolerating short rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Header signatures for the whole-document fallback scan.

func allocationSignature(h []string) bool {
	return findCol(h, "category") >= 0 && findCol(h, "ratio") >= 0 && findCol(h, "fund name") < 0
}

func planSignature(h []string) bool {
	return findCol(h, "fund name") >= 0 && findCol(h, "category") >= 0
}

func newDirectionSignature(h []string) bool {
	return findCol(h, "theme") >= 0
}

// parseAllocations reads the category-allocation table. A row without
// a category is skipped as malformed; a row whose ratio does not parse
// is skipped too, because an unknown opinion must stay silence rather
// than become zero. Duplicate categories keep their first position and
// last value.
func (p *Parser) parseAllocations(t *tableData, report *models.SourceReport) []models.AllocationEntry {
	catIdx := findCol(t.headers, "category")
	ratioIdx := findCol(t.headers, "ratio", "allocation")
	amountIdx := findCol(t.headers, "weekly amount", "amount")

	var entries []models.AllocationEntry
	position := make(map[string]int)
	for i, row := range t.rows {
		rowNum := i + 1
		rawCat := cell(row, catIdx)
		if rawCat == "" {
			report.Warnings = append(report.Warnings, models.ReportWarning{
				Code: models.WarnMalformedRow, Section: "Category Allocation", Row: rowNum,
				Detail: "row has no category",
			})
			continue
		}
		category := p.norm.Normalize(rawCat)

		ratio, ok := utils.ParseRatio(cell(row, ratioIdx))
		if !ok || ratio < 0 || ratio > 1 {
			report.Warnings = append(report.Warnings, models.ReportWarning{
				Code: models.WarnBadNumber, Section: "Category Allocation", Row: rowNum,
				Detail: fmt.Sprintf("category %q: unusable ratio %q", category, cell(row, ratioIdx)),
			})
			continue
		}

		entry := models.AllocationEntry{Category: category, Ratio: ratio}
		if amountIdx >= 0 {
			if raw := cell(row, amountIdx); raw != "" {
				if amount, ok := utils.ParseDecimal(raw); ok {
					entry.WeeklyAmountTarget = amount
				} else {
					report.Warnings = append(report.Warnings, models.ReportWarning{
						Code: models.WarnBadNumber, Section: "Category Allocation", Row: rowNum,
						Detail: fmt.Sprintf("category %q: unusable weekly amount %q", category, raw),
					})
				}
			}
		}

		if at, dup := position[category]; dup {
			entries[at] = entry
			report.Warnings = append(report.Warnings, models.ReportWarning{
				Code: models.WarnDuplicateCategory, Section: "Category Allocation", Row: rowNum,
				Detail: fmt.Sprintf("category %q appears again; last occurrence wins", category),
			})
			continue
		}
		position[category] = len(entries)
		entries = append(entries, entry)
	}
	return entries
}

// parsePlan reads the per-item plan table. Identity is the fund name
// or code: a row with neither is skipped as malformed. Rows with
// identity are kept even when some values do not parse, since presence
// itself feeds the quorum.
func (p *Parser) parsePlan(t *tableData, report *models.SourceReport) []models.PlanEntry {
	catIdx := findCol(t.headers, "category")
	subIdx := findCol(t.headers, "sub-category", "sub category", "subcategory")
	codeIdx := findCol(t.headers, "fund code", "code")
	nameIdx := findCol(t.headers, "fund name", "name")
	ratioIdx := findCol(t.headers, "ratio in category", "ratio")
	amountIdx := findCol(t.headers, "weekly amount", "amount")
	dayIdx := findCol(t.headers, "day")
	longIdx := findCol(t.headers, "long-term view", "long-term", "long")
	midIdx := findCol(t.headers, "mid-term view", "mid-term", "mid")
	shortIdx := findCol(t.headers, "short-term view", "short-term", "short")
	holdIdx := findCol(t.headers, "current holding", "holding")

	var entries []models.PlanEntry
	for i, row := range t.rows {
		rowNum := i + 1
		name := cell(row, nameIdx)
		code := cell(row, codeIdx)
		if name == "" && code == "" {
			report.Warnings = append(report.Warnings, models.ReportWarning{
				Code: models.WarnMalformedRow, Section: "Investment Plan", Row: rowNum,
				Detail: "row has neither fund name nor fund code",
			})
			continue
		}
		if code == "" {
			code = normalize.ExtractFundCode(name)
		}

		entry := models.PlanEntry{
			Category:      p.norm.Normalize(cell(row, catIdx)),
			SubCategory:   cell(row, subIdx),
			FundCode:      code,
			FundName:      name,
			LongTermView:  cell(row, longIdx),
			MidTermView:   cell(row, midIdx),
			ShortTermView: cell(row, shortIdx),
		}

		if raw := cell(row, ratioIdx); raw != "" {
			if ratio, ok := utils.ParseRatio(raw); ok && ratio >= 0 && ratio <= 1 {
				entry.RatioInCategory = ratio
			} else {
				report.Warnings = append(report.Warnings, models.ReportWarning{
					Code: models.WarnBadNumber, Section: "Investment Plan", Row: rowNum,
					Detail: fmt.Sprintf("item %q: unusable ratio %q", name, raw),
				})
			}
		}
		if raw := cell(row, amountIdx); raw != "" {
			if amount, ok := utils.ParseDecimal(raw); ok {
				entry.WeeklyAmount = amount
			} else {
				report.Warnings = append(report.Warnings, models.ReportWarning{
					Code: models.WarnBadNumber, Section: "Investment Plan", Row: rowNum,
					Detail: fmt.Sprintf("item %q: unusable weekly amount %q", name, raw),
				})
			}
		}
		if raw := cell(row, dayIdx); raw != "" {
			if day, ok := parseWeekday(raw); ok {
				entry.Day = day
			} else {
				report.Warnings = append(report.Warnings, models.ReportWarning{
					Code: models.WarnBadWeekday, Section: "Investment Plan", Row: rowNum,
					Detail: fmt.Sprintf("item %q: unknown day %q", name, raw),
				})
			}
		}
		if raw := cell(row, holdIdx); raw != "" {
			if holding, ok := utils.ParseDecimal(raw); ok {
				entry.CurrentHolding = holding
			} else {
				report.Warnings = append(report.Warnings, models.ReportWarning{
					Code: models.WarnBadNumber, Section: "Investment Plan", Row: rowNum,
					Detail: fmt.Sprintf("item %q: unusable holding %q", name, raw),
				})
			}
		}

		entries = append(entries, entry)
	}
	return entries
}

// parseNewDirections reads the optional theme-proposal table.
func parseNewDirections(t *tableData) []models.NewDirectionProposal {
	themeIdx := findCol(t.headers, "theme", "direction")
	rationaleIdx := findCol(t.headers, "rationale", "reason")

	var proposals []models.NewDirectionProposal
	for _, row := range t.rows {
		theme := cell(row, themeIdx)
		if theme == "" {
			continue
		}
		proposals = append(proposals, models.NewDirectionProposal{
			Theme:     theme,
			Rationale: cell(row, rationaleIdx),
		})
	}
	return proposals
}

// flagAllocationSum warns when a source's ratios stray from 1.0.
func flagAllocationSum(report *models.SourceReport) {
	if len(report.Allocations) == 0 {
		return
	}
	sum := report.AllocationSum()
	if sum < 1-sumTolerance || sum > 1+sumTolerance {
		report.Warnings = append(report.Warnings, models.ReportWarning{
			Code:    models.WarnAllocationSum,
			Section: "Category Allocation",
			Detail:  fmt.Sprintf("allocation ratios sum to %s, not 1.0", utils.FormatRatio(sum)),
		})
	}
}
