package utils

import (
	"time"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
)

// MarketClock answers trading-day questions in one exchange timezone.
type MarketClock struct {
	Location    *time.Location
	CloseHour   int
	CloseMinute int
}

// NewMarketClock creates a clock for loc with the given daily close time.
func NewMarketClock(loc *time.Location, closeHour, closeMinute int) MarketClock {
	if loc == nil {
		loc = time.UTC
	}
	return MarketClock{Location: loc, CloseHour: closeHour, CloseMinute: closeMinute}
}

// IsTradingDay reports whether t falls on a weekday in the clock's timezone.
// Exchange holidays are not modelled.
func (c MarketClock) IsTradingDay(t time.Time) bool {
	wd := t.In(c.Location).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// CloseOn returns the close time on t's calendar day.
func (c MarketClock) CloseOn(t time.Time) time.Time {
	local := t.In(c.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), c.CloseHour, c.CloseMinute, 0, 0, c.Location)
}

// IsAfterClose reports whether t is a trading day at or past the close.
func (c MarketClock) IsAfterClose(t time.Time) bool {
	return c.IsTradingDay(t) && !t.Before(c.CloseOn(t))
}

// Day returns t's calendar day in the clock's timezone as YYYY-MM-DD.
func (c MarketClock) Day(t time.Time) string {
	return t.In(c.Location).Format("2006-01-02")
}

// Status returns the session state at t. Pre-open runs from 04:00 to 09:30
// and the regular session from 09:30 until the configured close.
func (c MarketClock) Status(t time.Time) MarketStatus {
	if !c.IsTradingDay(t) {
		return MarketClosed
	}
	local := t.In(c.Location)
	minutes := local.Hour()*60 + local.Minute()
	closeMinutes := c.CloseHour*60 + c.CloseMinute

	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return MarketPreOpen
	case minutes >= 9*60+30 && minutes < closeMinutes:
		return MarketOpen
	default:
		return MarketClosed
	}
}

// NextClose returns the first close at or after t on a trading day.
func (c MarketClock) NextClose(t time.Time) time.Time {
	next := c.CloseOn(t)
	if t.After(next) {
		next = next.AddDate(0, 0, 1)
	}
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
