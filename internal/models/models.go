// Package models provides the records the alerting components exchange.
package models

import (
	"time"
)

// EventClose is the only event type with behavioral effect: it forces an
// end-of-day price sync for every tracked stock.
const EventClose = "close"

// StockRecord is a tracked instrument with the last price the system committed.
type StockRecord struct {
	Name      string  `json:"name" validate:"required"`
	LastPrice float64 `json:"lastprice" validate:"gte=0"`
}

// Quote is the latest close for a symbol at evaluation time.
type Quote struct {
	Symbol    string
	Close     float64
	Timestamp time.Time
}

// Event is the invocation input of a single evaluation run.
type Event struct {
	EventType string `json:"event_type"`
}

// IsClose reports whether the event requests an end-of-day sync.
func (e Event) IsClose() bool {
	return e.EventType == EventClose
}
