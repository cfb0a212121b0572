package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stockalerts/internal/config"
	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

func TestPriceMoveNotification(t *testing.T) {
	tests := []struct {
		name      string
		lastPrice float64
		price     float64
		wantTitle string
		wantBody  string
	}{
		{"gain", 100, 104.01, "ABC +4.01", "Price: $104.01"},
		{"loss", 100, 95, "ABC -5.00", "Price: $95.00"},
		{"unchanged is a gain", 100, 100, "ABC +0.00", "Price: $100.00"},
		{"rounds body", 20, 21.005, "ABC +5.03", "Price: $21.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := PriceMoveNotification("ABC", tt.lastPrice, tt.price)
			if n.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", n.Title, tt.wantTitle)
			}
			if n.Message != tt.wantBody {
				t.Errorf("body = %q, want %q", n.Message, tt.wantBody)
			}
			if n.Type != NotificationPriceMove || n.Symbol != "ABC" {
				t.Errorf("unexpected metadata %+v", n)
			}
		})
	}
}

func TestTargetHitNotification(t *testing.T) {
	n := TargetHitNotification(models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 1}, 50.01)

	if n.Title != "XYZ Hit target alert price $50.00" {
		t.Errorf("title = %q", n.Title)
	}
	if n.Message != "Current price: $50.01" {
		t.Errorf("body = %q", n.Message)
	}
	if n.Data["condition"] != "above" {
		t.Errorf("condition = %v", n.Data["condition"])
	}
}

func TestPushbulletNotifier_Send(t *testing.T) {
	type push struct {
		Type  string `json:"type"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	got := make(chan push, 1)
	tokens := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p push
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &p)
		got <- p
		tokens <- r.Header.Get("Access-Token")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"active":true}`))
	}))
	defer srv.Close()

	p := NewPushbulletNotifier(PushbulletConfig{APIKey: "pb-key", URL: srv.URL, Timeout: time.Second})
	if err := p.Send(context.Background(), Notification{Title: "ABC +4.01", Message: "Price: $104.01"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if tok := <-tokens; tok != "pb-key" {
		t.Errorf("Access-Token = %q", tok)
	}
	want := push{Type: "note", Title: "ABC +4.01", Body: "Price: $104.01"}
	if p := <-got; p != want {
		t.Errorf("payload = %+v, want %+v", p, want)
	}
}

func TestPushbulletNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Access token is missing or invalid."}}`))
	}))
	defer srv.Close()

	p := NewPushbulletNotifier(PushbulletConfig{APIKey: "bad", URL: srv.URL})
	err := p.Send(context.Background(), Notification{Title: "t"})

	var ne *apperrors.NotifierError
	if !apperrors.As(err, &ne) {
		t.Fatalf("expected NotifierError, got %v", err)
	}
	if ne.Channel != "pushbullet" || ne.Status != http.StatusUnauthorized {
		t.Errorf("unexpected error %+v", ne)
	}
}

type fakeChannel struct {
	name    string
	enabled bool
	err     error
	sent    []Notification
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }
func (f *fakeChannel) Send(ctx context.Context, n Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func TestMultiNotifier_Send(t *testing.T) {
	ok := &fakeChannel{name: "ok", enabled: true}
	off := &fakeChannel{name: "off", enabled: false}
	failing := &fakeChannel{name: "failing", enabled: true, err: apperrors.NewNotifierError("failing", 500, errors.New("boom"))}

	mn := NewMultiNotifier(zerolog.Nop())
	mn.AddChannel(ok)
	mn.AddChannel(off)
	mn.AddChannel(failing)

	err := mn.Notify(context.Background(), "title", "body")

	var ne *apperrors.NotifierError
	if !apperrors.As(err, &ne) || ne.Channel != "failing" {
		t.Fatalf("expected failing channel error, got %v", err)
	}
	if len(ok.sent) != 1 || ok.sent[0].Title != "title" || ok.sent[0].Message != "body" {
		t.Errorf("healthy channel got %+v", ok.sent)
	}
	if ok.sent[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped on send")
	}
	if len(off.sent) != 0 {
		t.Error("disabled channel should not be used")
	}
	if names := mn.Channels(); len(names) != 2 {
		t.Errorf("enabled channels = %v", names)
	}
}

func TestMultiNotifier_AggregatesFailures(t *testing.T) {
	mn := NewMultiNotifier(zerolog.Nop())
	mn.AddChannel(&fakeChannel{name: "a", enabled: true, err: errors.New("a down")})
	mn.AddChannel(&fakeChannel{name: "b", enabled: true, err: errors.New("b down")})

	err := mn.Notify(context.Background(), "t", "b")

	var ne *apperrors.NotifierError
	if !apperrors.As(err, &ne) || ne.Channel != "multi" {
		t.Fatalf("expected aggregated NotifierError, got %v", err)
	}
}

func TestNew_AddsWebhookWhenConfigured(t *testing.T) {
	hits := make(chan map[string]interface{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if r.URL.Path == "/hook" {
			hits <- payload
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := New(
		config.PushConfig{APIKey: "k", URL: srv.URL + "/push", Timeout: time.Second},
		config.NotifyConfig{WebhookURL: srv.URL + "/hook"},
		zerolog.Nop(),
	)
	mn, ok := notifier.(*MultiNotifier)
	if !ok {
		t.Fatalf("New returned %T", notifier)
	}
	if names := mn.Channels(); len(names) != 2 || names[0] != "pushbullet" || names[1] != "webhook" {
		t.Fatalf("channels = %v", names)
	}

	n := TargetHitNotification(models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 1}, 50.01)
	if err := mn.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	payload := <-hits
	if payload["title"] != "XYZ Hit target alert price $50.00" || payload["symbol"] != "XYZ" {
		t.Errorf("webhook payload = %v", payload)
	}
}

func TestNew_DisabledSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := New(
		config.PushConfig{URL: srv.URL, Timeout: time.Second},
		config.NotifyConfig{WebhookURL: srv.URL, Disabled: true},
		zerolog.Nop(),
	)
	if _, ok := notifier.(*NoOpNotifier); !ok {
		t.Fatalf("New returned %T, want *NoOpNotifier", notifier)
	}

	ctx := context.Background()
	if err := notifier.Notify(ctx, "ABC +4.01", "Price: $104.01"); err != nil {
		t.Fatal(err)
	}
	n := TargetHitNotification(models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 1}, 50.01)
	if err := notifier.Send(ctx, n); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("disabled notifier made %d requests", got)
	}
}
