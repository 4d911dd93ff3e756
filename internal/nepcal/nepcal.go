// Package nepcal converts between the Gregorian calendar and the Bikram
// Sambat (BS) calendar used by Nepali court sites. Conversion is table
// driven; the supported range is BS 2000-01-01 (AD 1943-04-14) through the
// end of BS 2090. Dates outside the range return errors, never panic.
package nepcal

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Date is a calendar date in Bikram Sambat.
type Date struct {
	Year  int
	Month int // 1..12 (Baishakh..Chaitra)
	Day   int
}

// epoch is the Gregorian day equivalent to BS 2000-01-01.
var epoch = time.Date(1943, time.April, 14, 0, 0, 0, 0, time.UTC)

const (
	minYear = 2000
	maxYear = 2090
)

// String renders the date as "YYYY-MM-DD", the form stored in the database
// and the checkpoint ledger.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Compact renders the date as "YYYYMMDD", the form the cause-list detail
// endpoint expects in its hearing_date field.
func (d Date) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// URLValue renders the date as "YYYY/MM/DD" for the pesi_date query param.
func (d Date) URLValue() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Valid reports whether d names a real day inside the supported range.
func (d Date) Valid() bool {
	if d.Year < minYear || d.Year > maxYear || d.Month < 1 || d.Month > 12 {
		return false
	}
	return d.Day >= 1 && d.Day <= monthDays[d.Year-minYear][d.Month-1]
}

// ParseDate parses "YYYY-MM-DD" into a Date.
func ParseDate(s string) (Date, error) {
	var d Date
	if _, err := fmt.Sscanf(s, "%4d-%2d-%2d", &d.Year, &d.Month, &d.Day); err != nil {
		return Date{}, eris.Wrapf(err, "nepcal: parse %q", s)
	}
	if !d.Valid() {
		return Date{}, eris.Errorf("nepcal: %q is not a valid BS date", s)
	}
	return d, nil
}

// FromGregorian converts a Gregorian date to BS. The time of day and
// location of t are ignored; only the calendar date matters.
func FromGregorian(t time.Time) (Date, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(day.Sub(epoch).Hours() / 24)
	if offset < 0 {
		return Date{}, eris.Errorf("nepcal: %s precedes BS %d", day.Format("2006-01-02"), minYear)
	}
	for y := minYear; y <= maxYear; y++ {
		for m := 1; m <= 12; m++ {
			n := monthDays[y-minYear][m-1]
			if offset < n {
				return Date{Year: y, Month: m, Day: offset + 1}, nil
			}
			offset -= n
		}
	}
	return Date{}, eris.Errorf("nepcal: %s exceeds BS %d", day.Format("2006-01-02"), maxYear)
}

// Gregorian converts a BS date back to Gregorian (UTC midnight).
func (d Date) Gregorian() (time.Time, error) {
	if !d.Valid() {
		return time.Time{}, eris.Errorf("nepcal: %s is not a valid BS date", d)
	}
	days := 0
	for y := minYear; y < d.Year; y++ {
		for m := 0; m < 12; m++ {
			days += monthDays[y-minYear][m]
		}
	}
	for m := 1; m < d.Month; m++ {
		days += monthDays[d.Year-minYear][m-1]
	}
	days += d.Day - 1
	return epoch.AddDate(0, 0, days), nil
}

// monthDays holds days per BS month for years 2000..2090.
var monthDays = [maxYear - minYear + 1][12]int{
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31}, // 2000
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30}, // 2005
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30}, // 2010
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31}, // 2015
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 31, 32, 31, 31, 30, 29, 30, 29, 30, 30}, // 2020
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 31, 32, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30}, // 2025
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 31, 32, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31}, // 2030
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{30, 32, 31, 32, 31, 31, 29, 30, 30, 29, 29, 31}, // 2035
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30}, // 2040
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 29, 30, 29, 30, 30}, // 2045
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31}, // 2050
	{31, 31, 31, 32, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30}, // 2055
	{31, 31, 32, 31, 32, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30}, // 2060
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{30, 32, 31, 32, 31, 31, 29, 30, 29, 30, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31}, // 2065
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 29, 31},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 29, 30, 30, 29, 30, 30}, // 2070
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 31},
	{31, 31, 31, 32, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30}, // 2075
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 30, 29, 31},
	{31, 31, 31, 32, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 29, 30, 29, 30, 30},
	{31, 32, 31, 32, 31, 30, 30, 30, 29, 29, 30, 30}, // 2080
	{31, 31, 32, 32, 31, 30, 30, 30, 29, 30, 30, 30},
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 30, 30},
	{31, 31, 32, 31, 31, 30, 30, 30, 29, 30, 30, 30},
	{31, 31, 32, 31, 31, 30, 30, 30, 29, 30, 30, 30},
	{31, 32, 31, 32, 30, 31, 30, 30, 29, 30, 30, 30}, // 2085
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 30, 30},
	{31, 31, 32, 31, 31, 31, 30, 30, 29, 30, 30, 30},
	{30, 31, 32, 32, 30, 31, 30, 30, 29, 30, 30, 30},
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 30, 30},
	{30, 32, 31, 32, 31, 30, 30, 30, 29, 30, 30, 30}, // 2090
}
