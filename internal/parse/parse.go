// Package parse extracts typed records from court site markup. Parsers
// never fail on malformed-but-present markup: bad sections degrade to
// partial or empty results with a logged signal, so one broken row cannot
// abort a crawl.
package parse

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ngm-data/causelist/internal/normalize"
)

// Kind discriminates the outcome of a page parse.
type Kind int

const (
	// NotFound means the page is present but carries no data for the date.
	NotFound Kind = iota
	// SubUnits means the page lists benches that must each be fetched.
	SubUnits
	// Rows means the page carries leaf case rows directly.
	Rows
)

// Bench identifies one sitting panel discovered on a bench list page.
type Bench struct {
	ID        string // numeric id posted back as bench_id
	No        string // bench number as displayed (Devanagari)
	JudgeName string
}

// CaseRow is one extracted cause list row, tagged with its natural key
// parts. Numerals are already transliterated to ASCII.
type CaseRow struct {
	SerialNo           string
	Division           string
	RegistrationDateBS string
	CaseType           string
	CaseNumber         string
	Plaintiff          string
	Defendant          string
	LawyerNames        string
	Remarks            string
	Status             string
}

// Result is the sum-typed outcome of a page parse: Benches is set for
// SubUnits, Rows and BenchType for Rows.
type Result struct {
	Kind      Kind
	Benches   []Bench
	Rows      []CaseRow
	BenchType string
}

var (
	sendDataExpr = regexp.MustCompile(`send_data\('(\d+)',\s*'([^']+)',\s*'(\d+)'\)`)
	parenExpr    = regexp.MustCompile(`\s*\([^)]*\)\s*`)
)

// Parser extracts records from the court site page layouts.
type Parser struct {
	log *zap.Logger
}

// New creates a Parser. A nil logger falls back to the global.
func New(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.L()
	}
	return &Parser{log: log}
}

// BenchList parses a bench list page. A missing table or an empty bench
// set is a NotFound result: absence of data for a date is a valid, final
// outcome.
func (p *Parser) BenchList(body []byte) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.log.Warn("bench list: unparseable document", zap.Error(err))
		return Result{Kind: NotFound}
	}

	table := doc.Find("table.table-striped.table-bordered.table-hover").First()
	if table.Length() == 0 {
		return Result{Kind: NotFound}
	}

	var benches []Bench
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		// The trailing जम्माः row is a total, not a bench.
		if strings.Contains(row.Text(), "जम्माः") {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		onclick, _ := row.Attr("onclick")
		m := sendDataExpr.FindStringSubmatch(onclick)
		if m == nil {
			return
		}
		benches = append(benches, Bench{
			ID:        m[1],
			No:        m[2],
			JudgeName: normalize.Whitespace(cells.Eq(1).Text()),
		})
	})

	if len(benches) == 0 {
		return Result{Kind: NotFound}
	}
	return Result{Kind: SubUnits, Benches: benches}
}

// CauseList parses one bench's cause list page into a Rows result, with
// the bench type heading (e.g. "संयुक्त इजलास") alongside. A page without
// the case table is NotFound: an empty bench is a valid outcome.
func (p *Parser) CauseList(body []byte) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.log.Warn("cause list: unparseable document", zap.Error(err))
		return Result{Kind: NotFound}
	}

	benchType := ""
	doc.Find("h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(h.Text(), "इजलास") {
			benchType = normalize.Whitespace(h.Text())
			return false
		}
		return true
	})

	table := doc.Find("table.table-bordered.table-hover").First()
	if table.Length() == 0 {
		return Result{Kind: NotFound, BenchType: benchType}
	}

	var rows []CaseRow
	table.Find("tbody tr.data_row").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 9 {
			p.log.Debug("cause list: short row skipped", zap.Int("cells", cells.Length()))
			return
		}

		caseNumber := cleanCaseNumber(cells.Eq(4))
		if caseNumber == "" {
			return
		}

		plaintiff, defendant := splitParties(normalize.Whitespace(cells.Eq(5).Text()))

		lawyers := normalize.Whitespace(cells.Eq(6).Text())
		if lawyers == "--" {
			lawyers = ""
		}

		rows = append(rows, CaseRow{
			SerialNo:           normalize.ToASCIIDigits(normalize.Whitespace(cells.Eq(0).Text())),
			Division:           normalize.Whitespace(cells.Eq(1).Text()),
			RegistrationDateBS: normalize.DateString(cells.Eq(2).Text()),
			CaseType:           normalize.Whitespace(cells.Eq(3).Text()),
			CaseNumber:         caseNumber,
			Plaintiff:          plaintiff,
			Defendant:          defendant,
			LawyerNames:        lawyers,
			Remarks:            normalize.Whitespace(cells.Eq(7).Text()),
			Status:             normalize.Whitespace(textWithBreaks(cells.Eq(8), "\n")),
		})
	})

	return Result{Kind: Rows, Rows: rows, BenchType: benchType}
}

// cleanCaseNumber flattens <br> runs to spaces and strips the
// parenthesized annotations courts append to case numbers.
func cleanCaseNumber(cell *goquery.Selection) string {
	text := normalize.Whitespace(textWithBreaks(cell, " "))
	text = parenExpr.ReplaceAllString(text, "")
	return normalize.ToASCIIDigits(strings.TrimSpace(text))
}

// splitParties splits the party cell on the "||" separator the site uses
// between plaintiff and defendant. A cell without the separator is all
// plaintiff.
func splitParties(parties string) (plaintiff, defendant string) {
	if before, after, ok := strings.Cut(parties, "||"); ok {
		return normalize.Whitespace(before), normalize.Whitespace(after)
	}
	return parties, ""
}

// textWithBreaks renders a cell's text with <br> elements replaced by sep.
func textWithBreaks(cell *goquery.Selection, sep string) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString(sep)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range cell.Nodes {
		walk(n)
	}
	return b.String()
}
