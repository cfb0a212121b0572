package utils

import (
	"testing"
	"time"
)

func newYorkClock(t *testing.T) MarketClock {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return NewMarketClock(loc, 16, 5)
}

func TestMarketClock_IsAfterClose(t *testing.T) {
	clock := newYorkClock(t)
	loc := clock.Location

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday before close", time.Date(2024, 3, 6, 15, 59, 0, 0, loc), false},
		{"weekday at close", time.Date(2024, 3, 6, 16, 5, 0, 0, loc), true},
		{"weekday evening", time.Date(2024, 3, 6, 21, 0, 0, 0, loc), true},
		{"saturday evening", time.Date(2024, 3, 9, 17, 0, 0, 0, loc), false},
		{"utc instant after close", time.Date(2024, 3, 6, 21, 10, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clock.IsAfterClose(tt.at); got != tt.want {
				t.Errorf("IsAfterClose(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestMarketClock_Status(t *testing.T) {
	clock := newYorkClock(t)
	loc := clock.Location

	tests := []struct {
		at   time.Time
		want MarketStatus
	}{
		{time.Date(2024, 3, 6, 8, 0, 0, 0, loc), MarketPreOpen},
		{time.Date(2024, 3, 6, 10, 0, 0, 0, loc), MarketOpen},
		{time.Date(2024, 3, 6, 16, 30, 0, 0, loc), MarketClosed},
		{time.Date(2024, 3, 10, 10, 0, 0, 0, loc), MarketClosed},
	}

	for _, tt := range tests {
		if got := clock.Status(tt.at); got != tt.want {
			t.Errorf("Status(%v) = %s, want %s", tt.at, got, tt.want)
		}
	}
}

func TestMarketClock_NextClose(t *testing.T) {
	clock := newYorkClock(t)
	loc := clock.Location

	// Friday after close rolls over the weekend.
	got := clock.NextClose(time.Date(2024, 3, 8, 17, 0, 0, 0, loc))
	want := time.Date(2024, 3, 11, 16, 5, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextClose = %v, want %v", got, want)
	}

	got = clock.NextClose(time.Date(2024, 3, 6, 9, 0, 0, 0, loc))
	want = time.Date(2024, 3, 6, 16, 5, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextClose = %v, want %v", got, want)
	}

	if d := clock.Day(time.Date(2024, 3, 7, 2, 0, 0, 0, time.UTC)); d != "2024-03-06" {
		t.Errorf("Day = %s, want 2024-03-06", d)
	}
}
