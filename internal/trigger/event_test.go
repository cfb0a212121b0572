package trigger

import (
	"strings"
	"testing"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    models.Event
		wantErr bool
	}{
		{name: "empty input", input: "", want: models.Event{}},
		{name: "whitespace only", input: " \n\t", want: models.Event{}},
		{name: "empty object", input: "{}", want: models.Event{}},
		{name: "close event", input: `{"event_type":"close"}`, want: models.Event{EventType: "close"}},
		{name: "unknown type is kept", input: `{"event_type":"open"}`, want: models.Event{EventType: "open"}},
		{name: "extra fields ignored", input: `{"event_type":"close","source":"cron"}`, want: models.Event{EventType: "close"}},
		{name: "null", input: "null", want: models.Event{}},
		{name: "malformed", input: `{"event_type":`, wantErr: true},
		{name: "wrong type", input: `{"event_type":1}`, wantErr: true},
		{name: "not an object", input: `["close"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent(strings.NewReader(tt.input))
			if tt.wantErr {
				if !apperrors.Is(err, apperrors.ErrInvalidEvent) {
					t.Fatalf("expected ErrInvalidEvent, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseEvent(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseEvent_NilReader(t *testing.T) {
	got, err := ParseEvent(nil)
	if err != nil || got.IsClose() {
		t.Fatalf("ParseEvent(nil) = %+v, %v", got, err)
	}
}
