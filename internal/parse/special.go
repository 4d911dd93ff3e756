package parse

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/normalize"
)

// SpecialBench is one option of the special court's bench_type select.
type SpecialBench struct {
	Value string
	Label string
}

// SpecialForm carries the fan-out inputs parsed from the special court's
// showbench response: the bench options and the hidden yo token the site
// expects echoed back on each bench request.
type SpecialForm struct {
	Benches []SpecialBench
	Yo      string
}

// SpecialCaseRow is one row of the special court's daily case table.
// Numerals are already transliterated to ASCII where they carry keys.
type SpecialCaseRow struct {
	SerialNo           string
	Category           string
	RegistrationDateBS string
	CaseType           string
	CaseNumber         string
	Plaintiff          string
	Defendant          string
	OriginalCaseNumber string
	Remarks            string
	Status             string
	DecisionType       string
}

// SpecialSitting is the heading of a special court cause list: the
// इजलास नं line and the chairperson/member judge block.
type SpecialSitting struct {
	CourtNumber string
	Judges      string
}

// SpecialBenchForm parses the special court's showbench response. The
// second return is false when the page carries no bench_type select,
// which the site serves for dates without sittings.
func (p *Parser) SpecialBenchForm(body []byte) (SpecialForm, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.log.Warn("special bench form: unparseable document", zap.Error(err))
		return SpecialForm{}, false
	}

	sel := doc.Find(`select[name="bench_type"]`).First()
	if sel.Length() == 0 {
		return SpecialForm{}, false
	}

	form := SpecialForm{Yo: "1"}
	if v, ok := doc.Find(`input[name="yo"][type="hidden"]`).First().Attr("value"); ok && strings.TrimSpace(v) != "" {
		form.Yo = strings.TrimSpace(v)
	}
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		form.Benches = append(form.Benches, SpecialBench{
			Value: value,
			Label: normalize.Whitespace(opt.Text()),
		})
	})
	return form, true
}

// SpecialCauseList parses one bench's daily case table plus the sitting
// heading. Rows short of the 11 expected cells are skipped.
func (p *Parser) SpecialCauseList(body []byte) ([]SpecialCaseRow, SpecialSitting) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.log.Warn("special cause list: unparseable document", zap.Error(err))
		return nil, SpecialSitting{}
	}

	var sitting SpecialSitting
	doc.Find("font").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		t := f.Text()
		if strings.Contains(t, "इजलास") && strings.Contains(t, "नं") {
			sitting.CourtNumber = normalize.Whitespace(t)
			return false
		}
		return true
	})
	doc.Find(`font[size="2"]`).EachWithBreak(func(_ int, f *goquery.Selection) bool {
		t := f.Text()
		if strings.Contains(t, "अध्यक्ष माननीय न्यायाधीश") || strings.Contains(t, "सदस्य माननीय न्यायाधीश") {
			if cell := f.Closest("td"); cell.Length() > 0 {
				sitting.Judges = strings.TrimSpace(textWithBreaks(cell, "\n"))
			}
			return false
		}
		return true
	})

	table := doc.Find(`table[width="100%"][border="1"]`).First()
	if table.Length() == 0 {
		return nil, sitting
	}

	var rows []SpecialCaseRow
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		// First row is the header.
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 11 {
			p.log.Debug("special cause list: short row skipped", zap.Int("cells", cells.Length()))
			return
		}
		caseNumber := normalize.Whitespace(cells.Eq(4).Text())
		if caseNumber == "" {
			return
		}
		rows = append(rows, SpecialCaseRow{
			SerialNo:           normalize.ToASCIIDigits(normalize.Whitespace(cells.Eq(0).Text())),
			Category:           normalize.Whitespace(cells.Eq(1).Text()),
			RegistrationDateBS: normalize.DateString(cells.Eq(2).Text()),
			CaseType:           normalize.Whitespace(cells.Eq(3).Text()),
			CaseNumber:         caseNumber,
			Plaintiff:          normalize.Whitespace(cells.Eq(5).Text()),
			Defendant:          normalize.Whitespace(cells.Eq(6).Text()),
			OriginalCaseNumber: normalize.FixParens(normalize.Whitespace(cells.Eq(7).Text())),
			Remarks:            normalize.Whitespace(cells.Eq(8).Text()),
			Status:             normalize.Whitespace(cells.Eq(9).Text()),
			DecisionType:       normalize.Whitespace(cells.Eq(10).Text()),
		})
	})
	return rows, sitting
}
