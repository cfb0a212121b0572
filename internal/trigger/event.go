// Package trigger turns an invocation event into one evaluation run, and
// schedules runs when the process is long-lived.
package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

// ParseEvent decodes an invocation event. Empty input is an empty event.
// Unknown fields are ignored.
func ParseEvent(r io.Reader) (models.Event, error) {
	var event models.Event
	if r == nil {
		return event, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return event, fmt.Errorf("reading event: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return event, nil
	}

	if err := json.Unmarshal(data, &event); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidEvent, err)
	}
	return event, nil
}
