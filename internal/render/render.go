// Package render produces the canonical markdown exports of daily and
// weekly artifacts, and reads daily exports back for rewrite runs.
//
// Output is deterministic: semantically equal artifacts render to
// byte-identical documents, with the Generated line as the only part
// that varies between runs.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Daily export
// ════════════════════════════════════════════════════════════════════

// RenderDaily renders a daily consensus artifact.
func RenderDaily(a *models.DailyConsensusArtifact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Consensus — %s\n\n", a.Date)
	fmt.Fprintf(&sb, "- Sources: %s\n", strings.Join(a.Sources, ", "))
	writeGenerated(&sb, a.Meta)
	sb.WriteString("\n")

	if len(a.Categories) > 0 {
		rows := make([][]string, 0, len(a.Categories))
		for _, c := range a.Categories {
			rows = append(rows, []string{
				cell(c.Category), string(c.State),
				utils.FormatRatio(c.Min), utils.FormatRatio(c.Max),
				utils.FormatRatio(c.Mean), utils.FormatRatio(c.Spread),
			})
		}
		writeTableSection(&sb, "## Category Consensus",
			[]string{"Category", "State", "Min", "Max", "Mean", "Spread"}, rows)

		var orows [][]string
		for _, c := range a.Categories {
			for _, op := range c.Opinions {
				orows = append(orows, []string{cell(c.Category), cell(op.Source), utils.FormatRatio(op.Ratio)})
			}
		}
		writeTableSection(&sb, "## Category Opinions",
			[]string{"Category", "Source", "Ratio"}, orows)
	}

	if len(a.Items) > 0 {
		rows := make([][]string, 0, len(a.Items))
		for _, it := range a.Items {
			rows = append(rows, []string{
				cell(it.Key), cell(it.DisplayName), cell(it.Category), cell(it.SubCategory),
				string(it.State), utils.FormatRatio(it.MeanRatio),
				cell(strings.Join(it.Supporting, ", ")), cell(strings.Join(it.Omitting, ", ")),
			})
		}
		writeTableSection(&sb, "## Item Consensus",
			[]string{"Key", "Fund Name", "Category", "Sub-category", "State", "Mean Ratio", "Supporting", "Omitting"}, rows)

		var orows [][]string
		for _, it := range a.Items {
			for _, op := range it.Opinions {
				orows = append(orows, []string{
					cell(it.Key), cell(op.Source), cell(op.FundName), cell(op.SubCategory),
					utils.FormatRatio(op.RatioInCategory), amountCell(op.WeeklyAmount), string(op.Day),
				})
			}
		}
		writeTableSection(&sb, "## Item Opinions",
			[]string{"Key", "Source", "Fund Name", "Sub-category", "Ratio", "Amount", "Day"}, orows)
	}

	if len(a.NewDirections) > 0 {
		rows := make([][]string, 0, len(a.NewDirections))
		for _, nd := range a.NewDirections {
			rows = append(rows, []string{
				cell(nd.Key), cell(nd.DisplayName), nd.FirstSeen,
				cell(strings.Join(nd.Sources, ", ")), cell(nd.Rationale),
			})
		}
		writeTableSection(&sb, "## New Directions",
			[]string{"Key", "Name", "First Seen", "Sources", "Rationale"}, rows)
	}

	f := a.Facts
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Usable sources: %d\n", f.SourceCount)
	fmt.Fprintf(&sb, "- Categories: %d\n", f.CategoryCount)
	fmt.Fprintf(&sb, "- Items: %d (consistent %d, divergent %d)\n", f.ItemCount, f.ConsistentItems, f.DivergentItems)
	fmt.Fprintf(&sb, "- New directions: %d\n", f.NewDirectionCount)
	sb.WriteString("\n")

	if len(f.TopShifts) > 0 {
		rows := make([][]string, 0, len(f.TopShifts))
		for _, s := range f.TopShifts {
			rows = append(rows, []string{
				cell(s.Category), utils.FormatRatio(s.From), utils.FormatRatio(s.To), utils.FormatRatio(s.Delta),
			})
		}
		writeTableSection(&sb, "### Top Shifts",
			[]string{"Category", "From", "To", "Delta"}, rows)
	}
	if len(f.TopDivergences) > 0 {
		rows := make([][]string, 0, len(f.TopDivergences))
		for _, d := range f.TopDivergences {
			rows = append(rows, []string{string(d.Kind), cell(d.Key), utils.FormatRatio(d.Spread)})
		}
		writeTableSection(&sb, "### Top Divergences",
			[]string{"Kind", "Key", "Spread"}, rows)
	}

	if a.Narration != "" {
		sb.WriteString("## Narration\n\n")
		sb.WriteString(strings.TrimSpace(a.Narration) + "\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// ════════════════════════════════════════════════════════════════════
// Weekly export
// ════════════════════════════════════════════════════════════════════

// RenderWeekly renders a weekly trend artifact.
func RenderWeekly(a *models.WeeklyTrendArtifact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Weekly Trend — %s\n\n", a.RangeKey())
	fmt.Fprintf(&sb, "- Days present: %s\n", strings.Join(a.DaysPresent, ", "))
	if len(a.DaysMissing) > 0 {
		fmt.Fprintf(&sb, "- Days missing: %s\n", strings.Join(a.DaysMissing, ", "))
	}
	writeGenerated(&sb, a.Meta)
	sb.WriteString("\n")

	if len(a.DaysPresent) > 0 {
		rows := make([][]string, 0, len(a.DaysPresent))
		for _, d := range a.DaysPresent {
			rows = append(rows, []string{d, fmt.Sprintf("%d", a.SourceCounts[d])})
		}
		writeTableSection(&sb, "## Source Coverage",
			[]string{"Date", "Usable Sources"}, rows)
	}

	if len(a.Categories) > 0 {
		writeTableSection(&sb, "## Category Trends", trendHeaders("Category"), trendRows(a.Categories))
	}
	if len(a.Items) > 0 {
		writeTableSection(&sb, "## Item Trends", trendHeaders("Key"), trendRows(a.Items))
	}

	if len(a.NewDirections) > 0 {
		rows := make([][]string, 0, len(a.NewDirections))
		for _, nd := range a.NewDirections {
			status := "transient"
			if nd.Persisted {
				status = "persisted"
			}
			rows = append(rows, []string{
				cell(nd.Key), cell(nd.DisplayName), nd.FirstSeen, status,
				cell(strings.Join(nd.Sources, ", ")), cell(nd.Rationale),
			})
		}
		writeTableSection(&sb, "## New Directions",
			[]string{"Key", "Name", "First Seen", "Status", "Sources", "Rationale"}, rows)
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func trendHeaders(idCol string) []string {
	return []string{idCol, "Name", "Direction", "First", "Last", "Net Change", "Consistent Days", "States"}
}

func trendRows(records []models.TrendRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for i := range records {
		rec := &records[i]
		first, last := "", ""
		if n := len(rec.Observations); n > 0 {
			first = utils.FormatRatio(rec.Observations[0].Value)
			last = utils.FormatRatio(rec.Observations[n-1].Value)
		}
		rows = append(rows, []string{
			cell(rec.Key), cell(rec.DisplayName), string(rec.Direction),
			first, last, utils.FormatRatio(rec.NetChange),
			fmt.Sprintf("%d/%d", rec.ConsistentDays(), len(rec.Observations)),
			stateArrows(rec.Observations),
		})
	}
	return rows
}

// stateArrows compresses per-day states into a C/D chain, e.g. "C→C→D".
func stateArrows(obs []models.Observation) string {
	letters := make([]string, len(obs))
	for i, o := range obs {
		if o.State == models.Consistent {
			letters[i] = "C"
		} else {
			letters[i] = "D"
		}
	}
	return strings.Join(letters, "→")
}

// ════════════════════════════════════════════════════════════════════
// Building blocks
// ════════════════════════════════════════════════════════════════════

func writeGenerated(sb *strings.Builder, meta models.RunMeta) {
	if meta.GeneratedAt.IsZero() {
		return
	}
	fmt.Fprintf(sb, "- Generated: %s (run %s)\n", meta.GeneratedAt.UTC().Format(time.RFC3339), meta.RunID)
}

func writeTableSection(sb *strings.Builder, heading string, headers []string, rows [][]string) {
	sb.WriteString(heading + "\n\n")
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	sb.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, row := range rows {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	sb.WriteString("\n")
}

// cell sanitizes a value for a table cell; a pipe would break the row.
func cell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", "/")
}

func amountCell(v float64) string {
	if v == 0 {
		return ""
	}
	return utils.FormatAmount(v)
}
