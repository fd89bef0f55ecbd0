// Package calendar works with date-only values. A date is a time.Time at UTC
// midnight; stay ranges are half-open [CheckIn, CheckOut).
package calendar

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DateLayout = "2006-01-02"
	Day        = 24 * time.Hour
)

var ErrInvalidRange = errors.New("check_out must be after check_in")

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func Format(t time.Time) string {
	return Date(t).Format(DateLayout)
}

// DaysUntil returns the whole days from now until date, rounded down.
func DaysUntil(date, now time.Time) int {
	return int(math.Floor(Date(date).Sub(now).Hours() / 24))
}

// IsWeekendNight reports whether the night starting on d is a Friday or Saturday night.
func IsWeekendNight(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Friday || wd == time.Saturday
}

type Range struct {
	CheckIn  time.Time `json:"check_in" bson:"check_in"`
	CheckOut time.Time `json:"check_out" bson:"check_out"`
}

func NewRange(checkIn, checkOut time.Time) (Range, error) {
	r := Range{CheckIn: Date(checkIn), CheckOut: Date(checkOut)}
	if !r.CheckIn.Before(r.CheckOut) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

func (r Range) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn) / Day)
}

// Dates lists every night in the range.
func (r Range) Dates() []time.Time {
	nights := r.Nights()
	dates := make([]time.Time, 0, nights)
	for i := 0; i < nights; i++ {
		dates = append(dates, r.CheckIn.AddDate(0, 0, i))
	}
	return dates
}

func (r Range) Contains(d time.Time) bool {
	d = Date(d)
	return !d.Before(r.CheckIn) && d.Before(r.CheckOut)
}

func (r Range) Overlaps(o Range) bool {
	return Overlaps(r.CheckIn, r.CheckOut, o.CheckIn, o.CheckOut)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", Format(r.CheckIn), Format(r.CheckOut))
}

// Overlaps compares two half-open intervals.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
