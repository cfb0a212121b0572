package engine

import (
	"github.com/shopspring/decimal"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

// DefaultMoveThreshold is the relative move that counts as significant.
const DefaultMoveThreshold = 0.04

// StockAction is the outcome of the stock-price rule for one record.
type StockAction int

const (
	// ActionNone leaves the record untouched.
	ActionNone StockAction = iota
	// ActionSync persists the rounded price without notifying.
	ActionSync
	// ActionUpdateAndNotify persists the rounded price and notifies.
	ActionUpdateAndNotify
)

func (a StockAction) String() string {
	switch a {
	case ActionSync:
		return "sync"
	case ActionUpdateAndNotify:
		return "update_and_notify"
	default:
		return "none"
	}
}

// PercentMove returns |price - lastPrice| / lastPrice as a fraction.
func PercentMove(lastPrice, price float64) (float64, error) {
	move, err := relativeMove(lastPrice, price)
	if err != nil {
		return 0, err
	}
	return move.InexactFloat64(), nil
}

func relativeMove(lastPrice, price float64) (decimal.Decimal, error) {
	if lastPrice == 0 {
		return decimal.Zero, apperrors.ErrZeroBaseline
	}
	last := decimal.NewFromFloat(lastPrice)
	return decimal.NewFromFloat(price).Sub(last).Abs().Div(last), nil
}

// DecideStock applies the stock-price rule. A move strictly greater than
// threshold updates and notifies; otherwise a close event syncs the price.
func DecideStock(lastPrice, price, threshold float64, eventType string) (StockAction, error) {
	move, err := relativeMove(lastPrice, price)
	if err != nil {
		return ActionNone, err
	}
	if move.GreaterThan(decimal.NewFromFloat(threshold)) {
		return ActionUpdateAndNotify, nil
	}
	if eventType == models.EventClose {
		return ActionSync, nil
	}
	return ActionNone, nil
}
