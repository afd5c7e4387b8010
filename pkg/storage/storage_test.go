package storage

import (
	"testing"
	"time"
)

func TestDateRange_Contains(t *testing.T) {
	day := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	tests := []struct {
		name string
		r    DateRange
		t    time.Time
		want bool
	}{
		{name: "empty range", r: DateRange{}, t: day, want: true},
		{name: "from bound, before", r: DateRange{From: day}, t: day.Add(-time.Second), want: false},
		{name: "from bound, equal", r: DateRange{From: day}, t: day, want: true},
		{name: "inclusive to, equal", r: DateRange{From: day, To: next}, t: next, want: true},
		{name: "inclusive to, after", r: DateRange{From: day, To: next}, t: next.Add(time.Nanosecond), want: false},
		{name: "exclusive to, equal", r: DateRange{From: day, To: next, ExclusiveTo: true}, t: next, want: false},
		{name: "exclusive to, inside", r: DateRange{From: day, To: next, ExclusiveTo: true}, t: next.Add(-time.Nanosecond), want: true},
		{name: "to only", r: DateRange{To: day}, t: day.Add(-48 * time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestDateRange_IsZero(t *testing.T) {
	if !(DateRange{}).IsZero() {
		t.Errorf("empty range must be zero")
	}
	if (DateRange{To: time.Now()}).IsZero() {
		t.Errorf("range with To must not be zero")
	}
}
