package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"stockalerts/internal/logging"
	"stockalerts/internal/notify"
)

// PlannedAction is a mutation or notification a dry run skipped.
type PlannedAction struct {
	Op     string  `json:"op"` // update, delete or notify
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,omitempty"`
	Title  string  `json:"title,omitempty"`
	Body   string  `json:"body,omitempty"`
}

// Plan collects the actions of a dry run in the order they were requested.
type Plan struct {
	mu      sync.Mutex
	actions []PlannedAction
}

func (p *Plan) record(a PlannedAction) {
	p.mu.Lock()
	p.actions = append(p.actions, a)
	p.mu.Unlock()
}

// Actions returns a copy of the recorded actions.
func (p *Plan) Actions() []PlannedAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlannedAction, len(p.actions))
	copy(out, p.actions)
	return out
}

func planLogger(ctx context.Context) zerolog.Logger {
	return logging.FromContext(ctx).With().Bool("dry_run", true).Logger()
}

// DryRunWriter logs and records datastore mutations without performing them.
// It logs through the record logger the engine stores in the context.
type DryRunWriter struct {
	plan *Plan
}

// NewDryRunWriter creates a DryRunWriter recording into plan.
func NewDryRunWriter(plan *Plan) *DryRunWriter {
	return &DryRunWriter{plan: plan}
}

// UpdateStockPrice records the update.
func (w *DryRunWriter) UpdateStockPrice(ctx context.Context, name string, price float64) error {
	w.plan.record(PlannedAction{Op: "update", Symbol: name, Price: price})
	logger := planLogger(ctx)
	logger.Info().Float64("lastprice", price).Msg("Would update stock price")
	return nil
}

// DeleteAlert records the delete.
func (w *DryRunWriter) DeleteAlert(ctx context.Context, name string, targetPrice float64) error {
	w.plan.record(PlannedAction{Op: "delete", Symbol: name, Price: targetPrice})
	logger := planLogger(ctx)
	logger.Info().Float64("target", targetPrice).Msg("Would delete alert")
	return nil
}

// DryRunNotifier logs and records notifications without sending them.
type DryRunNotifier struct {
	plan *Plan
}

// NewDryRunNotifier creates a DryRunNotifier recording into plan.
func NewDryRunNotifier(plan *Plan) *DryRunNotifier {
	return &DryRunNotifier{plan: plan}
}

// Send records the notification.
func (n *DryRunNotifier) Send(ctx context.Context, notif notify.Notification) error {
	n.plan.record(PlannedAction{Op: "notify", Symbol: notif.Symbol, Title: notif.Title, Body: notif.Message})
	logger := planLogger(ctx)
	logger.Info().Str("title", notif.Title).Str("body", notif.Message).Msg("Would send notification")
	return nil
}

// Notify records a plain notification.
func (n *DryRunNotifier) Notify(ctx context.Context, title, body string) error {
	return n.Send(ctx, notify.Notification{Type: notify.NotificationInfo, Title: title, Message: body})
}
