package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestNewRange(t *testing.T) {
	in := mustDate(t, "2026-03-10")
	out := mustDate(t, "2026-03-13")

	r, err := NewRange(in.Add(15*time.Hour), out)
	if err != nil {
		t.Fatalf("NewRange() error = %v", err)
	}
	if !r.CheckIn.Equal(in) {
		t.Errorf("CheckIn not truncated: %v", r.CheckIn)
	}
	if r.Nights() != 3 {
		t.Errorf("Nights() = %d, want 3", r.Nights())
	}
	dates := r.Dates()
	if len(dates) != 3 || Format(dates[2]) != "2026-03-12" {
		t.Errorf("Dates() = %v", dates)
	}

	if _, err := NewRange(out, in); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("reversed range error = %v, want ErrInvalidRange", err)
	}
	if _, err := NewRange(in, in); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("empty range error = %v, want ErrInvalidRange", err)
	}
}

func TestRange_Overlaps(t *testing.T) {
	base, _ := NewRange(mustDate(t, "2026-03-10"), mustDate(t, "2026-03-13"))

	tests := []struct {
		name string
		in   string
		out  string
		want bool
	}{
		{"same range", "2026-03-10", "2026-03-13", true},
		{"ends at check-in", "2026-03-08", "2026-03-10", false},
		{"starts at check-out", "2026-03-13", "2026-03-15", false},
		{"inside", "2026-03-11", "2026-03-12", true},
		{"straddles start", "2026-03-09", "2026-03-11", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other, _ := NewRange(mustDate(t, tt.in), mustDate(t, tt.out))
			if got := base.Overlaps(other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	checkIn := mustDate(t, "2026-03-17")

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"exactly seven days", mustDate(t, "2026-03-10"), 7},
		{"six and a half days", mustDate(t, "2026-03-10").Add(12 * time.Hour), 6},
		{"same day", mustDate(t, "2026-03-17").Add(time.Hour), -1},
		{"ten days", mustDate(t, "2026-03-07"), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(checkIn, tt.now); got != tt.want {
				t.Errorf("DaysUntil() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsWeekendNight(t *testing.T) {
	if !IsWeekendNight(mustDate(t, "2026-03-13")) { // Friday
		t.Errorf("Friday should be a weekend night")
	}
	if IsWeekendNight(mustDate(t, "2026-03-15")) { // Sunday
		t.Errorf("Sunday should not be a weekend night")
	}
}
