package notify

import (
	"github.com/shopspring/decimal"

	"stockalerts/internal/models"
	"stockalerts/pkg/utils"
)

// PriceMoveNotification builds the message for a stock that moved past the
// threshold. The title carries the unsigned percentage prefixed with + when
// price is at or above lastPrice and - otherwise. lastPrice must be non-zero.
func PriceMoveNotification(name string, lastPrice, price float64) Notification {
	last := decimal.NewFromFloat(lastPrice)
	current := decimal.NewFromFloat(price)
	percent := current.Sub(last).Abs().Div(last).Mul(decimal.NewFromInt(100))

	sign := "+"
	if current.LessThan(last) {
		sign = "-"
	}

	return Notification{
		Type:    NotificationPriceMove,
		Symbol:  name,
		Title:   name + " " + sign + percent.StringFixed(2),
		Message: "Price: " + utils.FormatDollars(price),
		Data: map[string]interface{}{
			"last_price": lastPrice,
			"price":      price,
			"percent":    percent.Round(2).InexactFloat64(),
		},
	}
}

// TargetHitNotification builds the message for a triggered alert.
func TargetHitNotification(alert models.AlertRecord, price float64) Notification {
	return Notification{
		Type:    NotificationAlert,
		Symbol:  alert.Name,
		Title:   alert.Name + " Hit target alert price " + utils.FormatDollars(alert.TargetPrice),
		Message: "Current price: " + utils.FormatDollars(price),
		Data: map[string]interface{}{
			"target_price": alert.TargetPrice,
			"price":        price,
			"condition":    alert.Condition(),
		},
	}
}
