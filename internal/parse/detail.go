package parse

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/normalize"
)

const maxEntityFieldLen = 500

// Detail is the enrichment payload extracted from a case detail page.
type Detail struct {
	RegistrationNumber string
	Subject            string
	CaseStatus         string
	VerdictDateBS      string
	VerdictJudge       string
	HearingCount       string

	Entities []DetailEntity
	Hearings []DetailHearing
	Timeline []TimelineEntry
}

// DetailEntity is one party listed on a detail page.
type DetailEntity struct {
	Side    string // "plaintiff" or "defendant"
	Name    string
	Address string
}

// DetailHearing is one row of the detail page's hearing history table.
type DetailHearing struct {
	DateBS   string
	Type     string
	Division string
	Judge    string
	Order    string
}

// TimelineEntry is one row of the detail page's appointment-date table.
type TimelineEntry struct {
	DateBS string
	Type   string
}

// detailSetters maps the dt label on a detail page to the Detail field it
// populates. Labels are matched by containment after whitespace collapse.
var detailSetters = []struct {
	label string
	set   func(*Detail, string)
}{
	{"रजिष्ट्रेशन नं", func(d *Detail, v string) { d.RegistrationNumber = normalize.ToASCIIDigits(v) }},
	{"मुद्दाको बिषय", func(d *Detail, v string) { d.Subject = v }},
	{"मुद्दाको स्थिति", func(d *Detail, v string) { d.CaseStatus = v }},
	{"फैसला मिति", func(d *Detail, v string) { d.VerdictDateBS = normalize.DateString(v) }},
	{"फैसला गर्ने मा. न्यायाधीश", func(d *Detail, v string) { d.VerdictJudge = v }},
	{"पेशी चढेको संख्या", func(d *Detail, v string) { d.HearingCount = normalize.ToASCIIDigits(v) }},
}

// CaseDetail parses a case detail page. The second return is false when
// the page carries no detail sections at all, which the site serves for
// unknown case numbers.
func (p *Parser) CaseDetail(body []byte) (*Detail, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.log.Warn("case detail: unparseable document", zap.Error(err))
		return nil, false
	}

	text := doc.Text()
	if !strings.Contains(text, "वादी/प्रतिवादीको विवरण") && !strings.Contains(text, "पेशी विवरण") {
		return nil, false
	}

	d := &Detail{}
	p.parseDetailFields(doc, d)
	p.parseDetailEntities(doc, d)
	p.parseDetailHearings(doc, d)
	p.parseDetailTimeline(doc, d)
	return d, true
}

func (p *Parser) parseDetailFields(doc *goquery.Document, d *Detail) {
	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		label := normalize.Whitespace(dt.Text())
		value := normalize.Whitespace(dt.NextFiltered("dd").Text())
		if value == "" || value == "--" {
			return
		}
		for _, s := range detailSetters {
			if strings.Contains(label, s.label) {
				s.set(d, value)
				return
			}
		}
		p.log.Debug("case detail: unmapped label", zap.String("label", label))
	})
}

// parseDetailEntities walks the party tables below the
// वादी/प्रतिवादीको विवरण heading. Each side has its own record_display
// table whose first header cell names the side.
func (p *Parser) parseDetailEntities(doc *goquery.Document, d *Detail) {
	section := findSection(doc, "वादी/प्रतिवादीको विवरण")
	if section == nil {
		return
	}
	section.Find("table.record_display").Each(func(_ int, table *goquery.Selection) {
		header := normalize.Whitespace(table.Find("th").First().Text())
		side := ""
		switch {
		case strings.Contains(header, "प्रतिवादी"):
			side = "defendant"
		case strings.Contains(header, "वादी"):
			side = "plaintiff"
		default:
			return
		}
		table.Find("tr").Each(func(i int, row *goquery.Selection) {
			// First two rows are the side header and the column header.
			if i < 2 {
				return
			}
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}
			name := truncate(normalize.Whitespace(cells.Eq(0).Text()), maxEntityFieldLen)
			if name == "" {
				return
			}
			d.Entities = append(d.Entities, DetailEntity{
				Side:    side,
				Name:    name,
				Address: truncate(normalize.Whitespace(cells.Eq(1).Text()), maxEntityFieldLen),
			})
		})
	})
}

func (p *Parser) parseDetailHearings(doc *goquery.Document, d *Detail) {
	section := findSection(doc, "पेशी विवरण")
	if section == nil {
		return
	}
	section.Find("table.record_display").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		date := normalize.DateString(cells.Eq(0).Text())
		if date == "" {
			return
		}
		d.Hearings = append(d.Hearings, DetailHearing{
			DateBS:   date,
			Type:     normalize.Whitespace(cells.Eq(1).Text()),
			Division: normalize.Whitespace(cells.Eq(2).Text()),
			Judge:    normalize.Whitespace(cells.Eq(3).Text()),
			Order:    normalize.Whitespace(cells.Eq(4).Text()),
		})
	})
}

func (p *Parser) parseDetailTimeline(doc *goquery.Document, d *Detail) {
	section := findSectionFunc(doc, func(t string) bool {
		return strings.Contains(t, "तारेख") && strings.Contains(t, "विवरण")
	})
	if section == nil {
		return
	}
	section.Find("table.record_display").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		date := normalize.DateString(cells.Eq(0).Text())
		if date == "" {
			return
		}
		d.Timeline = append(d.Timeline, TimelineEntry{
			DateBS: date,
			Type:   normalize.Whitespace(cells.Eq(1).Text()),
		})
	})
}

// findSection locates the h4 heading containing label and returns the
// enclosing row's next sibling, where the site nests the section's tables.
func findSection(doc *goquery.Document, label string) *goquery.Selection {
	return findSectionFunc(doc, func(t string) bool { return strings.Contains(t, label) })
}

func findSectionFunc(doc *goquery.Document, match func(string) bool) *goquery.Selection {
	var section *goquery.Selection
	doc.Find("h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !match(h.Text()) {
			return true
		}
		row := h.Closest("tr")
		if row.Length() == 0 {
			section = h.Parent()
			return false
		}
		section = row.Next()
		return false
	})
	if section != nil && section.Length() == 0 {
		return nil
	}
	return section
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
