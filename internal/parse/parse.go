// Package parse turns one per-source advice document into a typed
// SourceReport. Documents follow the canonical markdown template: a
// category-allocation table and a per-item plan table are required,
// key-adjustment bullets and a new-directions table are optional.
// Malformed rows are skipped and flagged; only a missing required
// section fails the document.
package parse

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sipboard/sipboard/internal/normalize"
	"github.com/sipboard/sipboard/pkg/models"
)

// Section headings of the canonical template, matched by prefix,
// case-insensitively.
const (
	SectionAllocation    = "category allocation"
	SectionPlan          = "investment plan"
	SectionNewDirections = "new directions"
)

var isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Parser extracts SourceReports from advice documents. One Parser may
// serve concurrent Parse calls; the embedded Normalizer handles its
// own locking.
type Parser struct {
	md   goldmark.Markdown
	norm *normalize.Normalizer
}

// New builds a Parser around the given name normalizer.
func New(n *normalize.Normalizer) *Parser {
	return &Parser{
		md:   goldmark.New(goldmark.WithExtensions(extension.Table)),
		norm: n,
	}
}

// Parse reads one source's document for the given date. The returned
// report's Date comes from the document title when present, so callers
// can detect date mismatches. Returns MissingSectionError when a
// required section is absent.
func (p *Parser) Parse(date, source string, doc []byte) (*models.SourceReport, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, EmptyDocumentError{Date: date, Source: source}
	}

	root := p.md.Parser().Parse(text.NewReader(doc))
	secs := collectSections(root, doc)

	report := &models.SourceReport{
		Date:   date,
		Source: p.norm.Normalize(source),
	}
	if found := isoDateRe.FindString(secs.title); found != "" {
		report.Date = found
	}

	allocTbl := secs.tableFor(SectionAllocation, allocationSignature)
	if allocTbl == nil {
		return nil, MissingSectionError{Date: date, Source: source, Section: "Category Allocation"}
	}
	planTbl := secs.tableFor(SectionPlan, planSignature)
	if planTbl == nil {
		return nil, MissingSectionError{Date: date, Source: source, Section: "Investment Plan"}
	}

	report.Allocations = p.parseAllocations(allocTbl, report)
	report.Plan = p.parsePlan(planTbl, report)
	if ndTbl := secs.tableFor(SectionNewDirections, newDirectionSignature); ndTbl != nil {
		report.NewDirections = parseNewDirections(ndTbl)
	}

	flagAllocationSum(report)
	return report, nil
}

// sections is the document decomposed into its title and the tables
// found under each heading.
type sections struct {
	title  string
	tables []headedTable
}

type headedTable struct {
	heading string // lowercased text of the nearest preceding heading
	table   *tableData
}

// tableFor returns the first table under a heading with the given
// prefix, falling back to the first table anywhere whose header row
// matches the signature. Sources occasionally renumber or retitle
// sections; the fallback keeps such documents parseable.
func (s *sections) tableFor(headingPrefix string, signature func([]string) bool) *tableData {
	for _, ht := range s.tables {
		if strings.HasPrefix(ht.heading, headingPrefix) {
			return ht.table
		}
	}
	for _, ht := range s.tables {
		if signature(ht.table.headers) {
			return ht.table
		}
	}
	return nil
}

// collectSections walks the document's top level, tracking the current
// heading and attaching each table to it.
func collectSections(root ast.Node, source []byte) *sections {
	secs := &sections{}
	heading := ""
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Heading:
			txt := strings.TrimSpace(nodeText(n, source))
			if n.Level == 1 && secs.title == "" {
				secs.title = txt
			}
			heading = normalizeHeading(txt)
		case *extast.Table:
			secs.tables = append(secs.tables, headedTable{
				heading: heading,
				table:   readTable(n, source),
			})
		}
	}
	return secs
}

// normalizeHeading lowercases a heading and strips any leading list
// numbering, e.g. "2. Category Allocation" -> "category allocation".
func normalizeHeading(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexRune(s, ' '); i > 0 {
		prefix := strings.TrimRight(s[:i], ".)")
		if _, ok := atoi(prefix); ok {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	return s
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// nodeText concatenates the text segments beneath a node.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// parseWeekday reads a contribution-day tag, accepting full or
// three-letter English day names in any case.
func parseWeekday(s string) (models.Weekday, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if len(key) > 3 {
		key = key[:3]
	}
	switch key {
	case "mon":
		return models.Monday, true
	case "tue":
		return models.Tuesday, true
	case "wed":
		return models.Wednesday, true
	case "thu":
		return models.Thursday, true
	case "fri":
		return models.Friday, true
	case "sat":
		return models.Saturday, true
	case "sun":
		return models.Sunday, true
	}
	return "", false
}
