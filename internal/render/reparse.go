package render

import (
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// ExportFormatError reports a daily export that cannot be read back.
type ExportFormatError struct {
	Reason string
}

func (e ExportFormatError) Error() string {
	return "daily export: " + e.Reason
}

var (
	isoDateRe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	generatedRe = regexp.MustCompile(`Generated: (\S+) \(run ([^)]*)\)`)
)

// ════════════════════════════════════════════════════════════════════
// Re-parse
// ════════════════════════════════════════════════════════════════════

// ParseDaily reads a rendered daily export back into its artifact. The
// result matches the rendered artifact in every semantic field; run
// metadata is restored when the Generated line is present. Summary
// counts are recomputed rather than read, so a hand-edited document
// stays internally coherent.
func ParseDaily(doc []byte) (*models.DailyConsensusArtifact, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(doc))

	art := &models.DailyConsensusArtifact{}
	catIndex := map[string]int{}
	itemIndex := map[string]int{}
	section := ""
	var narration []string

	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Heading:
			txt := strings.TrimSpace(nodeText(n, doc))
			if n.Level == 1 {
				art.Date = isoDateRe.FindString(txt)
				continue
			}
			section = strings.ToLower(txt)
		case *ast.List:
			if section == "" {
				readHeaderList(n, doc, art)
			}
		case *extast.Table:
			headers, rows := readTable(n, doc)
			readSectionTable(section, headers, rows, art, catIndex, itemIndex)
		case *ast.Paragraph:
			if section == "narration" {
				narration = append(narration, paragraphText(n, doc))
			}
		}
	}

	if art.Date == "" {
		return nil, ExportFormatError{Reason: "no dated title"}
	}

	art.Narration = strings.Join(narration, "\n\n")
	recomputeFacts(art)
	return art, nil
}

// readHeaderList reads the bullets above the first section: the source
// list and the optional Generated line.
func readHeaderList(list *ast.List, doc []byte, art *models.DailyConsensusArtifact) {
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		txt := strings.TrimSpace(nodeText(li, doc))
		if rest, ok := strings.CutPrefix(txt, "Sources:"); ok {
			art.Sources = splitList(rest)
			continue
		}
		if m := generatedRe.FindStringSubmatch(txt); m != nil {
			if ts, err := time.Parse(time.RFC3339, m[1]); err == nil {
				art.Meta.GeneratedAt = ts
				art.Meta.RunID = m[2]
			}
		}
	}
}

func readSectionTable(section string, headers []string, rows [][]string, art *models.DailyConsensusArtifact, catIndex, itemIndex map[string]int) {
	col := func(name string) int {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		return -1
	}
	at := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	switch section {
	case "category consensus":
		name, state := col("category"), col("state")
		cMin, cMax, cMean, cSpread := col("min"), col("max"), col("mean"), col("spread")
		for _, row := range rows {
			res := models.ConsensusCategoryResult{
				Category: at(row, name),
				State:    models.ConsensusState(at(row, state)),
			}
			res.Min, _ = utils.ParseDecimal(at(row, cMin))
			res.Max, _ = utils.ParseDecimal(at(row, cMax))
			res.Mean, _ = utils.ParseDecimal(at(row, cMean))
			res.Spread, _ = utils.ParseDecimal(at(row, cSpread))
			catIndex[res.Category] = len(art.Categories)
			art.Categories = append(art.Categories, res)
		}

	case "category opinions":
		name, source, ratio := col("category"), col("source"), col("ratio")
		for _, row := range rows {
			op := models.RatioOpinion{Source: at(row, source)}
			op.Ratio, _ = utils.ParseDecimal(at(row, ratio))
			i, ok := catIndex[at(row, name)]
			if !ok {
				i = len(art.Categories)
				catIndex[at(row, name)] = i
				art.Categories = append(art.Categories, models.ConsensusCategoryResult{Category: at(row, name)})
			}
			art.Categories[i].Opinions = append(art.Categories[i].Opinions, op)
		}

	case "item consensus":
		key, fund, cat, sub := col("key"), col("fund name"), col("category"), col("sub-category")
		state, mean, supp, omit := col("state"), col("mean ratio"), col("supporting"), col("omitting")
		for _, row := range rows {
			res := models.ConsensusItemResult{
				Key:         at(row, key),
				DisplayName: at(row, fund),
				Category:    at(row, cat),
				SubCategory: at(row, sub),
				State:       models.ConsensusState(at(row, state)),
				Supporting:  splitList(at(row, supp)),
				Omitting:    splitList(at(row, omit)),
			}
			res.MeanRatio, _ = utils.ParseDecimal(at(row, mean))
			itemIndex[res.Key] = len(art.Items)
			art.Items = append(art.Items, res)
		}

	case "item opinions":
		key, source, fund, sub := col("key"), col("source"), col("fund name"), col("sub-category")
		ratio, amount, dayCol := col("ratio"), col("amount"), col("day")
		for _, row := range rows {
			op := models.ItemOpinion{
				Source:      at(row, source),
				FundName:    at(row, fund),
				SubCategory: at(row, sub),
				Day:         models.Weekday(at(row, dayCol)),
			}
			op.RatioInCategory, _ = utils.ParseDecimal(at(row, ratio))
			op.WeeklyAmount, _ = utils.ParseDecimal(at(row, amount))
			i, ok := itemIndex[at(row, key)]
			if !ok {
				i = len(art.Items)
				itemIndex[at(row, key)] = i
				art.Items = append(art.Items, models.ConsensusItemResult{Key: at(row, key)})
			}
			art.Items[i].Opinions = append(art.Items[i].Opinions, op)
		}

	case "new directions":
		key, name, seen := col("key"), col("name"), col("first seen")
		sources, rationale := col("sources"), col("rationale")
		for _, row := range rows {
			art.NewDirections = append(art.NewDirections, models.NewDirection{
				Key:         at(row, key),
				DisplayName: at(row, name),
				FirstSeen:   at(row, seen),
				Sources:     splitList(at(row, sources)),
				Rationale:   at(row, rationale),
			})
		}

	case "top shifts":
		name, from, to, delta := col("category"), col("from"), col("to"), col("delta")
		for _, row := range rows {
			s := models.CategoryShift{Category: at(row, name)}
			s.From, _ = utils.ParseDecimal(at(row, from))
			s.To, _ = utils.ParseDecimal(at(row, to))
			s.Delta, _ = utils.ParseDecimal(at(row, delta))
			art.Facts.TopShifts = append(art.Facts.TopShifts, s)
		}

	case "top divergences":
		kind, key, spread := col("kind"), col("key"), col("spread")
		for _, row := range rows {
			d := models.DivergenceFact{
				Kind: models.EntityKind(at(row, kind)),
				Key:  at(row, key),
			}
			d.Spread, _ = utils.ParseDecimal(at(row, spread))
			art.Facts.TopDivergences = append(art.Facts.TopDivergences, d)
		}
	}
}

// recomputeFacts rebuilds the derivable summary counts from the parsed
// content.
func recomputeFacts(art *models.DailyConsensusArtifact) {
	art.Facts.SourceCount = len(art.Sources)
	art.Facts.CategoryCount = len(art.Categories)
	art.Facts.ItemCount = len(art.Items)
	art.Facts.NewDirectionCount = len(art.NewDirections)
	art.Facts.ConsistentItems = 0
	art.Facts.DivergentItems = 0
	for _, it := range art.Items {
		if it.State == models.Consistent {
			art.Facts.ConsistentItems++
		} else {
			art.Facts.DivergentItems++
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// AST helpers
// ════════════════════════════════════════════════════════════════════

func readTable(t *extast.Table, doc []byte) (headers []string, rows [][]string) {
	for child := t.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *extast.TableHeader:
			for c := row.FirstChild(); c != nil; c = c.NextSibling() {
				headers = append(headers, strings.ToLower(strings.TrimSpace(nodeText(c, doc))))
			}
		case *extast.TableRow:
			var cells []string
			for c := row.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, strings.TrimSpace(nodeText(c, doc)))
			}
			rows = append(rows, cells)
		}
	}
	return headers, rows
}

// nodeText concatenates the text segments beneath a node.
func nodeText(n ast.Node, doc []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(doc))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// paragraphText preserves soft line breaks, unlike nodeText.
func paragraphText(n ast.Node, doc []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(doc))
			if t.SoftLineBreak() {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// splitList reads a comma-joined cell back into a slice; empty in,
// nil out.
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
