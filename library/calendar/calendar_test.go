package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDaysRollsOver(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2024-02-28", 1, "2024-02-29"},
		{"2025-02-28", 1, "2025-03-01"},
		{"2024-02-29", 1, "2024-03-01"},
		{"2024-12-31", 1, "2025-01-01"},
		{"2025-01-01", -1, "2024-12-31"},
		{"2025-03-01", -1, "2025-02-28"},
		{"2024-03-01", -1, "2024-02-29"},
		{"2025-01-01", 14, "2025-01-15"},
		{"2025-01-31", 30, "2025-03-02"},
		{"2025-06-15", 0, "2025-06-15"},
		{"2000-02-28", 366, "2001-02-28"},
	}

	for _, tt := range tests {
		got := AddDays(MustParse(tt.from), tt.n)
		assert.Equal(t, tt.want, Format(got), "AddDays(%s, %d)", tt.from, tt.n)
	}
}

func TestDiffDays(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2025-01-15", "2025-01-20", 5},
		{"2025-01-20", "2025-01-15", -5},
		{"2025-01-15", "2025-01-15", 0},
		{"2024-02-28", "2024-03-01", 2},
		{"2025-02-28", "2025-03-01", 1},
		{"2024-01-01", "2025-01-01", 366},
		{"2025-03-29", "2025-03-31", 2}, // spans a European DST change
		{"2025-11-01", "2025-11-03", 2}, // spans a US DST change
	}

	for _, tt := range tests {
		got := DiffDays(MustParse(tt.a), MustParse(tt.b))
		assert.Equal(t, tt.want, got, "DiffDays(%s, %s)", tt.a, tt.b)
	}
}

func TestDiffDaysInvertsAddDays(t *testing.T) {
	starts := []string{"1900-01-01", "1999-12-31", "2024-02-29", "2025-02-28", "2999-06-30"}
	for _, s := range starts {
		d := MustParse(s)
		for n := -800; n <= 800; n += 37 {
			assert.Equal(t, n, DiffDays(d, AddDays(d, n)), "start %s n %d", s, n)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	d := MustParse("1900-01-01")
	for i := 0; i < 3000; i++ {
		parsed, err := Parse(Format(d))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
		d = d.AddDays(41)
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"",
		"2025-1-01",
		"2025/01/01",
		"2025.01.01",
		"25-01-01",
		"02025-01-01",
		"2025-01-01 ",
		"2025-00-10",
		"2025-13-01",
		"2025-01-00",
		"2025-01-32",
		"2025-02-29",
		"2100-02-29",
		"2025-04-31",
		"1899-12-31",
		"3001-01-01",
		"abcd-ef-gh",
		"2025-0a-01",
	}

	for _, s := range bad {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidFormat, "Parse(%q)", s)
		assert.False(t, Valid(s), "Valid(%q)", s)
	}
}

func TestParseAccepts(t *testing.T) {
	good := []string{"2024-02-29", "2000-02-29", "1900-01-01", "3000-12-31", "2025-04-30"}
	for _, s := range good {
		d, err := Parse(s)
		require.NoError(t, err, "Parse(%q)", s)
		assert.Equal(t, s, d.String())
	}
}

func TestCustomBounds(t *testing.T) {
	b := Bounds{MinYear: 2000, MaxYear: 2100}

	_, err := b.Parse("1999-12-31")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	d, err := b.Parse("2100-12-31")
	require.NoError(t, err)
	assert.Equal(t, 2100, d.Year())
	assert.Equal(t, time.December, d.Month())
	assert.Equal(t, 31, d.Day())
}

func TestFromTimeIgnoresClock(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	late := time.Date(2025, 1, 1, 23, 59, 59, 0, loc)
	early := time.Date(2025, 1, 1, 0, 0, 1, 0, loc)

	assert.Equal(t, FromTime(early), FromTime(late))
	assert.Equal(t, "2025-01-01", FromTime(late).String())
}

func TestNewNormalizes(t *testing.T) {
	assert.Equal(t, "2025-03-02", New(2025, time.February, 30).String())
	assert.Equal(t, "2024-03-01", New(2024, time.February, 30).String())
	assert.True(t, New(2025, time.January, 1).Before(New(2025, time.January, 2)))
	assert.True(t, New(2025, time.January, 2).After(New(2025, time.January, 1)))
	assert.True(t, Date{}.IsZero())
}
