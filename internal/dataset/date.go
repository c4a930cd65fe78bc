package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Date is a calendar day with no location attached. The backend speaks
// "YYYY-MM-DD" and every comparison or iteration happens on the calendar
// components, so a date never shifts by a timezone offset.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

var ErrInvalidDate = errors.New("invalid date")

// ParseDate reads "YYYY-MM-DD". Longer inputs such as "2022-11-01T00:00:00"
// or "2022-11-01 00:00:00" are accepted and the time part is ignored.
func ParseDate(s string) (Date, error) {
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	y, err := strconv.Atoi(s[0:4])
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	m, err := strconv.Atoi(s[5:7])
	if err != nil || m < 1 || m > 12 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	d, err := strconv.Atoi(s[8:10])
	if err != nil || d < 1 || d > daysIn(time.Month(m), y) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: y, Month: time.Month(m), Day: d}, nil
}

// MustParseDate is ParseDate for literals.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Short renders the day as MM/DD for axis labels.
func (d Date) Short() string {
	return fmt.Sprintf("%02d/%02d", int(d.Month), d.Day)
}

// civil anchors the calendar components at UTC midnight purely for day
// arithmetic; the result is never formatted or compared in another zone.
func (d Date) civil() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func fromCivil(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) AddDays(n int) Date { return fromCivil(d.civil().AddDate(0, 0, n)) }

// Ordinal is the number of days since 1970-01-01. It is the epoch value used
// when dates are compared or tie-checked.
func (d Date) Ordinal() int64 { return d.civil().Unix() / 86400 }

func (d Date) Compare(o Date) int {
	switch a, b := d.Ordinal(), o.Ordinal(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// DaysUntil returns o - d in whole days.
func (d Date) DaysUntil(o Date) int { return int(o.Ordinal() - d.Ordinal()) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// DefaultRange is the window covered by the attack dataset.
var DefaultRange = DateRange{
	Start: Date{Year: 2022, Month: time.November, Day: 1},
	End:   Date{Year: 2023, Month: time.January, Day: 8},
}

// Days is the inclusive day count; zero for an inverted range.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.Start.DaysUntil(r.End) + 1
}

func (r DateRange) String() string {
	return r.Start.String() + " to " + r.End.String()
}

// Each calls fn for every day of the range in order.
func (r DateRange) Each(fn func(Date)) {
	n := r.Days()
	for i := 0; i < n; i++ {
		fn(r.Start.AddDays(i))
	}
}

// ParseRange parses both ends of a range.
func ParseRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: s, End: e}, nil
}
