package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "stockalerts/internal/errors"
)

// Kind identifies which rule a failure came from.
type Kind string

const (
	KindStock Kind = "stock"
	KindAlert Kind = "alert"
)

// Stage identifies the step of a rule that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageQuote    Stage = "quote"
	StageCompare  Stage = "compare"
	StageUpdate   Stage = "update"
	StageNotify   Stage = "notify"
	StageDelete   Stage = "delete"
)

// RecordFailure is an error isolated to one record.
type RecordFailure struct {
	Kind   Kind
	Symbol string
	Stage  Stage
	Err    error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", f.Kind, f.Symbol, f.Stage, f.Err)
}

func (f RecordFailure) Unwrap() error {
	return f.Err
}

// MarshalJSON renders the wrapped error as its message.
func (f RecordFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Kind   Kind   `json:"kind"`
		Symbol string `json:"symbol"`
		Stage  Stage  `json:"stage"`
		Error  string `json:"error"`
	}{f.Kind, f.Symbol, f.Stage, msg})
}

// Report summarises one evaluation run. It is safe for concurrent updates.
type Report struct {
	RunID             string          `json:"run_id,omitempty"`
	EventType         string          `json:"event_type"`
	StocksChecked     int             `json:"stocks_checked"`
	StocksUpdated     int             `json:"stocks_updated"`
	MoveNotifications int             `json:"move_notifications"`
	AlertsChecked     int             `json:"alerts_checked"`
	AlertsTriggered   int             `json:"alerts_triggered"`
	AlertsCleared     int             `json:"alerts_cleared"`
	Failures          []RecordFailure `json:"failures"`
	Duration          time.Duration   `json:"duration_ns"`

	mu sync.Mutex
}

func (r *Report) add(field *int) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

func (r *Report) fail(f RecordFailure) {
	r.mu.Lock()
	r.Failures = append(r.Failures, f)
	r.mu.Unlock()
}

// Err aggregates every record failure, or returns nil when there were none.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return apperrors.Join(errs...)
}

// FailureCount returns the number of failed records.
func (r *Report) FailureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures)
}
