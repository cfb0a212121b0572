package models

// DirectionAbove marks an alert that fires when the price rises above target.
// Any other direction value fires when the price falls below target.
const DirectionAbove = 1

// AlertRecord is a one-shot target price trigger.
type AlertRecord struct {
	Name        string  `json:"name" validate:"required"`
	TargetPrice float64 `json:"targetprice"`
	Direction   int     `json:"direction"`
}

// Crossed reports whether price satisfies the alert condition.
func (a AlertRecord) Crossed(price float64) bool {
	if a.Direction == DirectionAbove {
		return price > a.TargetPrice
	}
	return price < a.TargetPrice
}

// Condition returns a human-readable form of the alert direction.
func (a AlertRecord) Condition() string {
	if a.Direction == DirectionAbove {
		return "above"
	}
	return "below"
}
