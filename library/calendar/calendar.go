// Package calendar holds the date arithmetic used by circulation: loan and
// due dates, overdue day counts and date validation. Dates are calendar days
// with no time of day, stored as YYYY-MM-DD text.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Layout is the text form of a Date.
const Layout = "2006-01-02"

// ErrInvalidFormat is returned when a string is not a valid YYYY-MM-DD date.
var ErrInvalidFormat = errors.New("invalid date format")

// Date is a calendar day. The zero value is not a valid date.
type Date struct {
	year  int
	month time.Month
	day   int
}

// New returns the normalized date for year, month and day. Out of range
// values roll over the way time.Date does (February 30 becomes March 1 or 2).
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// Today returns the current local calendar date.
func Today() Date {
	return FromTime(time.Now())
}

// Year returns the four digit year.
func (d Date) Year() int { return d.year }

// Month returns the month of the year.
func (d Date) Month() time.Month { return d.month }

// Day returns the day of the month.
func (d Date) Day() int { return d.day }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// midnight anchors d at 00:00 UTC so that day differences never cross a DST
// transition.
func (d Date) midnight() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days after d. n may be negative.
func (d Date) AddDays(n int) Date {
	return FromTime(d.midnight().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.midnight().Before(other.midnight())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.midnight().After(other.midnight())
}

// String renders d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// AddDays returns the date n days after d.
func AddDays(d Date, n int) Date {
	return d.AddDays(n)
}

// DiffDays returns the signed number of whole days from a to b (b - a).
func DiffDays(a, b Date) int {
	return int((b.midnight().Unix() - a.midnight().Unix()) / secondsPerDay)
}

// Format renders d as YYYY-MM-DD, zero padded.
func Format(d Date) string {
	return d.String()
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
