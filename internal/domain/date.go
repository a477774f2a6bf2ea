package domain

import "time"

// DateLayout is the calendar-day format used for due-date labels.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the calendar day that is n days after t.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// ParseDay parses a YYYY-MM-DD string into a calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// MustDay is ParseDay for literals. It panics on malformed input.
func MustDay(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDay renders a nullable day, returning "" when absent.
func FormatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// SameDay reports whether two nullable days are both absent or the same calendar day.
func SameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Day(*a).Equal(Day(*b))
}

// DayPtr returns a pointer to the calendar day of t.
func DayPtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}
