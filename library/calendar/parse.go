package calendar

import (
	"fmt"
	"time"
)

// Bounds limits the years Parse accepts.
type Bounds struct {
	MinYear int
	MaxYear int
}

// DefaultBounds is the year range used by the package level Parse.
var DefaultBounds = Bounds{MinYear: 1900, MaxYear: 3000}

// Parse parses s using DefaultBounds.
func Parse(s string) (Date, error) {
	return DefaultBounds.Parse(s)
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Valid reports whether s is a valid date under DefaultBounds.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse accepts exactly YYYY-MM-DD. The month must be 1-12 and the day must
// exist in that month, leap years included.
func (b Bounds) Parse(s string) (Date, error) {
	if len(s) != len(Layout) || s[4] != '-' || s[7] != '-' {
		return Date{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidFormat, s)
	}

	year, ok := digits(s[0:4])
	if !ok {
		return Date{}, fmt.Errorf("%w: bad year in %q", ErrInvalidFormat, s)
	}
	month, ok := digits(s[5:7])
	if !ok {
		return Date{}, fmt.Errorf("%w: bad month in %q", ErrInvalidFormat, s)
	}
	day, ok := digits(s[8:10])
	if !ok {
		return Date{}, fmt.Errorf("%w: bad day in %q", ErrInvalidFormat, s)
	}

	if year < b.MinYear || year > b.MaxYear {
		return Date{}, fmt.Errorf("%w: year %d outside %d..%d", ErrInvalidFormat, year, b.MinYear, b.MaxYear)
	}
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("%w: month %d out of range", ErrInvalidFormat, month)
	}
	if day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: day %d out of range", ErrInvalidFormat, day)
	}
	if day > DaysIn(year, time.Month(month)) {
		return Date{}, fmt.Errorf("%w: %s does not exist", ErrInvalidFormat, s)
	}

	return Date{year: year, month: time.Month(month), day: day}, nil
}

func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
