package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The (month, year) key for schedules and billing attribution
// =============================================================================

// Period identifies one calendar month. It is the key half of every schedule:
// schedules are unique per (obligation, period) regardless of how the row was
// materialized.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}.normalize()
}

// PeriodOf returns the period containing the given time.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// normalize rolls out-of-range months into the year, so adding months across
// December behaves like calendar arithmetic.
func (p Period) normalize() Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: t.Month()}
}

// AddMonths returns the period n months later (or earlier for negative n),
// rolling the year as needed.
func (p Period) AddMonths(n int) Period {
	return Period{Year: p.Year, Month: p.Month + time.Month(n)}.normalize()
}

func (p Period) Next() Period { return p.AddMonths(1) }
func (p Period) Prev() Period { return p.AddMonths(-1) }

// Compare returns -1, 0 or 1 ordering p against other chronologically.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year != other.Year:
		if p.Year < other.Year {
			return -1
		}
		return 1
	case p.Month != other.Month:
		if p.Month < other.Month {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }
func (p Period) After(other Period) bool  { return p.Compare(other) > 0 }

// Start returns midnight UTC on the first day of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// DaysIn returns the number of days in the month.
func (p Period) DaysIn() int {
	return p.Start().AddDate(0, 1, -1).Day()
}

// String renders the canonical "2006-01" form used in schedule IDs and logs.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod parses the canonical "2006-01" form.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, &ValidationError{Field: "period", Reason: "want YYYY-MM, got " + s}
	}
	return PeriodOf(t), nil
}
