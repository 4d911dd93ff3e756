// Package normalize cleans up text extracted from court pages: whitespace
// collapsing, Devanagari digit transliteration, and date formatting.
package normalize

import (
	"strings"
)

var devanagariToASCII = map[rune]rune{
	'०': '0', '१': '1', '२': '2', '३': '3', '४': '4',
	'५': '5', '६': '6', '७': '7', '८': '8', '९': '9',
}

var asciiToDevanagari = map[rune]rune{
	'0': '०', '1': '१', '2': '२', '3': '३', '4': '४',
	'5': '५', '6': '६', '7': '७', '8': '८', '9': '९',
}

// Whitespace collapses runs of whitespace (including NBSP) to single spaces
// and trims the ends.
func Whitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// ToASCIIDigits transliterates Devanagari numerals to ASCII, leaving every
// other rune untouched.
func ToASCIIDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if a, ok := devanagariToASCII[r]; ok {
			return a
		}
		return r
	}, s)
}

// ToDevanagariDigits transliterates ASCII numerals to Devanagari. The case
// detail endpoint only matches case numbers written in Devanagari.
func ToDevanagariDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if d, ok := asciiToDevanagari[r]; ok {
			return d
		}
		return r
	}, s)
}

// DateString normalizes a scraped date like "२०८०/०२/०७" or "2080.2.7" to
// "2080-02-07". Returns "" if no date-like content remains.
func DateString(s string) string {
	s = ToASCIIDigits(Whitespace(s))
	s = strings.NewReplacer("/", "-", ".", "-", "|", "-").Replace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return ""
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || len(p) > 4 {
			return ""
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return ""
			}
		}
		if i == 0 {
			for len(p) < 4 {
				p = "0" + p
			}
		} else if len(p) < 2 {
			p = "0" + p
		}
		parts[i] = p
	}
	return strings.Join(parts, "-")
}

// FixParens removes stray spaces inside parentheses: "( क )" -> "(क)".
func FixParens(s string) string {
	s = strings.ReplaceAll(s, "( ", "(")
	s = strings.ReplaceAll(s, " )", ")")
	return s
}
