package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/logging"
	"stockalerts/internal/models"
	"stockalerts/internal/notify"
)

// recorder is shared by the fakes so tests can check cross-collaborator order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

type fakeQuotes struct {
	prices map[string]float64
	errs   map[string]error
}

func (f *fakeQuotes) GetLatestClose(ctx context.Context, ticker string) (float64, error) {
	if err, ok := f.errs[ticker]; ok {
		return 0, err
	}
	p, ok := f.prices[ticker]
	if !ok {
		return 0, apperrors.NewNotFoundError("fake", ticker)
	}
	return p, nil
}

type fakeWriter struct {
	rec       *recorder
	updateErr error
	deleteErr error
}

func (f *fakeWriter) UpdateStockPrice(ctx context.Context, name string, price float64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rec.add("update %s %.2f", name, price)
	return nil
}

func (f *fakeWriter) DeleteAlert(ctx context.Context, name string, targetPrice float64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.rec.add("delete %s %.2f", name, targetPrice)
	return nil
}

type fakeNotifier struct {
	rec *recorder
	err error
}

func (f *fakeNotifier) Send(ctx context.Context, n notify.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rec.add("notify %s | %s", n.Title, n.Message)
	return nil
}

type fixture struct {
	rec      *recorder
	quotes   *fakeQuotes
	writer   *fakeWriter
	notifier *fakeNotifier
}

func newFixture(prices map[string]float64) *fixture {
	rec := &recorder{}
	return &fixture{
		rec:      rec,
		quotes:   &fakeQuotes{prices: prices, errs: map[string]error{}},
		writer:   &fakeWriter{rec: rec},
		notifier: &fakeNotifier{rec: rec},
	}
}

func (f *fixture) engine(cfg Config) *Engine {
	return New(f.quotes, f.writer, f.notifier, cfg, zerolog.Nop())
}

func equalCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (all: %q)", i, got[i], want[i], got)
		}
	}
}

func TestEvaluate_StockRule(t *testing.T) {
	tests := []struct {
		name      string
		lastPrice float64
		price     float64
		eventType string
		want      []string
	}{
		{
			name:      "move over threshold updates then notifies",
			lastPrice: 100, price: 104.01,
			want: []string{"update ABC 104.01", "notify ABC +4.01 | Price: $104.01"},
		},
		{
			name:      "drop over threshold",
			lastPrice: 100, price: 90,
			want: []string{"update ABC 90.00", "notify ABC -10.00 | Price: $90.00"},
		},
		{
			name:      "exactly at threshold is not a move",
			lastPrice: 100, price: 104,
		},
		{
			name:      "small move on close syncs without notifying",
			lastPrice: 100, price: 101.234, eventType: models.EventClose,
			want: []string{"update ABC 101.23"},
		},
		{
			name:      "threshold move on close still notifies once",
			lastPrice: 100, price: 110, eventType: models.EventClose,
			want: []string{"update ABC 110.00", "notify ABC +10.00 | Price: $110.00"},
		},
		{
			name:      "small move without close does nothing",
			lastPrice: 100, price: 102,
		},
		{
			name:      "other event types do not sync",
			lastPrice: 100, price: 102, eventType: "open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(map[string]float64{"ABC": tt.price})
			report := f.engine(DefaultConfig()).Evaluate(context.Background(),
				[]models.StockRecord{{Name: "ABC", LastPrice: tt.lastPrice}}, nil, tt.eventType)

			if err := report.Err(); err != nil {
				t.Fatalf("unexpected failures: %v", err)
			}
			equalCalls(t, f.rec.list(), tt.want)
			if report.StocksChecked != 1 {
				t.Errorf("StocksChecked = %d", report.StocksChecked)
			}
		})
	}
}

func TestEvaluate_ZeroBaseline(t *testing.T) {
	f := newFixture(map[string]float64{"ABC": 10})
	report := f.engine(DefaultConfig()).Evaluate(context.Background(),
		[]models.StockRecord{{Name: "ABC", LastPrice: 0}}, nil, models.EventClose)

	if !errors.Is(report.Err(), apperrors.ErrZeroBaseline) {
		t.Fatalf("expected ErrZeroBaseline, got %v", report.Err())
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != StageCompare {
		t.Errorf("failures = %+v", report.Failures)
	}
	equalCalls(t, f.rec.list(), nil)
}

func TestEvaluate_UpdateFailureSuppressesNotification(t *testing.T) {
	f := newFixture(map[string]float64{"ABC": 120})
	f.writer.updateErr = apperrors.NewDatastoreError("update", "stocks", errors.New("down"))

	report := f.engine(DefaultConfig()).Evaluate(context.Background(),
		[]models.StockRecord{{Name: "ABC", LastPrice: 100}}, nil, "")

	equalCalls(t, f.rec.list(), nil)
	if len(report.Failures) != 1 || report.Failures[0].Stage != StageUpdate {
		t.Fatalf("failures = %+v", report.Failures)
	}
	var dsErr *apperrors.DatastoreError
	if !errors.As(report.Err(), &dsErr) {
		t.Errorf("aggregated error should unwrap to DatastoreError: %v", report.Err())
	}
	if report.StocksUpdated != 0 || report.MoveNotifications != 0 {
		t.Errorf("counts = %d updated, %d notified", report.StocksUpdated, report.MoveNotifications)
	}
}

func TestEvaluate_StockNotifyFailureKeepsUpdate(t *testing.T) {
	f := newFixture(map[string]float64{"ABC": 120})
	f.notifier.err = apperrors.NewNotifierError("pushbullet", 500, errors.New("boom"))

	report := f.engine(DefaultConfig()).Evaluate(context.Background(),
		[]models.StockRecord{{Name: "ABC", LastPrice: 100}}, nil, "")

	equalCalls(t, f.rec.list(), []string{"update ABC 120.00"})
	if report.StocksUpdated != 1 || report.MoveNotifications != 0 {
		t.Errorf("counts = %d updated, %d notified", report.StocksUpdated, report.MoveNotifications)
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != StageNotify {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestEvaluate_AlertRule(t *testing.T) {
	tests := []struct {
		name  string
		alert models.AlertRecord
		price float64
		want  []string
	}{
		{
			name:  "above target notifies then deletes",
			alert: models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 1},
			price: 50.01,
			want:  []string{"notify XYZ Hit target alert price $50.00 | Current price: $50.01", "delete XYZ 50.00"},
		},
		{
			name:  "above target not reached",
			alert: models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 1},
			price: 50,
		},
		{
			name:  "below direction ignores rise",
			alert: models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 0},
			price: 55,
		},
		{
			name:  "below direction fires under target",
			alert: models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: 0},
			price: 49.5,
			want:  []string{"notify XYZ Hit target alert price $50.00 | Current price: $49.50", "delete XYZ 50.00"},
		},
		{
			name:  "any non-one direction means below",
			alert: models.AlertRecord{Name: "XYZ", TargetPrice: 50, Direction: -1},
			price: 40,
			want:  []string{"notify XYZ Hit target alert price $50.00 | Current price: $40.00", "delete XYZ 50.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(map[string]float64{"XYZ": tt.price})
			report := f.engine(DefaultConfig()).Evaluate(context.Background(), nil,
				[]models.AlertRecord{tt.alert}, "")

			if err := report.Err(); err != nil {
				t.Fatalf("unexpected failures: %v", err)
			}
			equalCalls(t, f.rec.list(), tt.want)
			if len(tt.want) > 0 && (report.AlertsTriggered != 1 || report.AlertsCleared != 1) {
				t.Errorf("triggered=%d cleared=%d", report.AlertsTriggered, report.AlertsCleared)
			}
		})
	}
}

func TestEvaluate_AlertNotifyFailureKeepsAlert(t *testing.T) {
	f := newFixture(map[string]float64{"XYZ": 60})
	f.notifier.err = errors.New("push down")

	report := f.engine(DefaultConfig()).Evaluate(context.Background(), nil,
		[]models.AlertRecord{{Name: "XYZ", TargetPrice: 50, Direction: 1}}, "")

	equalCalls(t, f.rec.list(), nil)
	if report.AlertsTriggered != 0 || report.AlertsCleared != 0 {
		t.Errorf("triggered=%d cleared=%d", report.AlertsTriggered, report.AlertsCleared)
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != StageNotify {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestEvaluate_AlertDeleteFailureIsReported(t *testing.T) {
	f := newFixture(map[string]float64{"XYZ": 60})
	f.writer.deleteErr = errors.New("delete failed")

	report := f.engine(DefaultConfig()).Evaluate(context.Background(), nil,
		[]models.AlertRecord{{Name: "XYZ", TargetPrice: 50, Direction: 1}}, "")

	if report.AlertsTriggered != 1 || report.AlertsCleared != 0 {
		t.Errorf("triggered=%d cleared=%d", report.AlertsTriggered, report.AlertsCleared)
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != StageDelete {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestEvaluate_IsolatesRecordFailures(t *testing.T) {
	f := newFixture(map[string]float64{"GOOD": 200, "XYZ": 10})
	f.quotes.errs["FLAKY"] = apperrors.NewProviderError("fake", "FLAKY", 503, errors.New("unavailable"))

	stocks := []models.StockRecord{
		{Name: "MISSING", LastPrice: 10},
		{Name: "FLAKY", LastPrice: 10},
		{Name: "", LastPrice: 10},
		{Name: "GOOD", LastPrice: 100},
	}
	alerts := []models.AlertRecord{
		{Name: "MISSING", TargetPrice: 1, Direction: 1},
		{Name: "XYZ", TargetPrice: 20, Direction: 0},
	}

	report := f.engine(DefaultConfig()).Evaluate(context.Background(), stocks, alerts, "")

	equalCalls(t, f.rec.list(), []string{
		"update GOOD 200.00",
		"notify GOOD +100.00 | Price: $200.00",
		"notify XYZ Hit target alert price $20.00 | Current price: $10.00",
		"delete XYZ 20.00",
	})

	if report.StocksChecked != 4 || report.AlertsChecked != 2 {
		t.Errorf("checked = %d stocks, %d alerts", report.StocksChecked, report.AlertsChecked)
	}
	if len(report.Failures) != 4 {
		t.Fatalf("failures = %+v", report.Failures)
	}

	err := report.Err()
	if !apperrors.IsNotFound(err) {
		t.Error("aggregated error should contain a NotFoundError")
	}
	if !errors.Is(err, apperrors.ErrInvalidRecord) {
		t.Error("aggregated error should contain ErrInvalidRecord")
	}
	var pe *apperrors.ProviderError
	if !errors.As(err, &pe) || pe.Status != 503 {
		t.Errorf("aggregated error should contain the ProviderError, got %v", err)
	}
}

func TestEvaluate_ConcurrentMatchesSequential(t *testing.T) {
	prices := map[string]float64{}
	var stocks []models.StockRecord
	var alerts []models.AlertRecord
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("S%02d", i)
		prices[name] = 100 + float64(i)
		stocks = append(stocks, models.StockRecord{Name: name, LastPrice: 100})
		alerts = append(alerts, models.AlertRecord{Name: name, TargetPrice: 110, Direction: 1})
	}

	seq := newFixture(prices)
	seqReport := seq.engine(DefaultConfig()).Evaluate(context.Background(), stocks, alerts, models.EventClose)

	par := newFixture(prices)
	parReport := par.engine(Config{MoveThreshold: DefaultMoveThreshold, Concurrency: 8}).
		Evaluate(context.Background(), stocks, alerts, models.EventClose)

	if seqReport.StocksUpdated != parReport.StocksUpdated ||
		seqReport.MoveNotifications != parReport.MoveNotifications ||
		seqReport.AlertsTriggered != parReport.AlertsTriggered ||
		seqReport.AlertsCleared != parReport.AlertsCleared {
		t.Fatalf("sequential %+v != concurrent %+v", seqReport, parReport)
	}
	if len(seq.rec.list()) != len(par.rec.list()) {
		t.Errorf("call counts differ: %d vs %d", len(seq.rec.list()), len(par.rec.list()))
	}
	// 40 synced stocks, 35 over 4%, 29 alerts over 110.
	if parReport.StocksUpdated != 40 || parReport.MoveNotifications != 35 || parReport.AlertsCleared != 29 {
		t.Errorf("unexpected counts %+v", parReport)
	}
}

func TestDryRun_RecordsPlan(t *testing.T) {
	f := newFixture(map[string]float64{"ABC": 104.01, "XYZ": 50.01})
	plan := &Plan{}
	eng := New(f.quotes, NewDryRunWriter(plan), NewDryRunNotifier(plan),
		DefaultConfig(), zerolog.Nop())

	report := eng.Evaluate(context.Background(),
		[]models.StockRecord{{Name: "ABC", LastPrice: 100}},
		[]models.AlertRecord{{Name: "XYZ", TargetPrice: 50, Direction: 1}}, "")

	if err := report.Err(); err != nil {
		t.Fatal(err)
	}

	actions := plan.Actions()
	want := []PlannedAction{
		{Op: "update", Symbol: "ABC", Price: 104.01},
		{Op: "notify", Symbol: "ABC", Title: "ABC +4.01", Body: "Price: $104.01"},
		{Op: "notify", Symbol: "XYZ", Title: "XYZ Hit target alert price $50.00", Body: "Current price: $50.01"},
		{Op: "delete", Symbol: "XYZ", Price: 50},
	}
	if len(actions) != len(want) {
		t.Fatalf("actions = %+v", actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("action %d = %+v, want %+v", i, actions[i], want[i])
		}
	}
}

func TestDryRun_LogsThroughRecordLogger(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(map[string]float64{"ABC": 104.01})
	plan := &Plan{}
	eng := New(f.quotes, NewDryRunWriter(plan), NewDryRunNotifier(plan),
		DefaultConfig(), zerolog.New(&buf))

	ctx := logging.ContextWithRunID(context.Background(), "run-7")
	report := eng.Evaluate(ctx, []models.StockRecord{{Name: "ABC", LastPrice: 100}}, nil, "")
	if err := report.Err(); err != nil {
		t.Fatal(err)
	}

	planned := map[string]bool{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		if entry["dry_run"] != true {
			continue
		}
		if entry["symbol"] != "ABC" || entry["run_id"] != "run-7" {
			t.Errorf("dry-run line lacks record fields: %s", line)
		}
		planned[entry["message"].(string)] = true
	}
	for _, msg := range []string{"Would update stock price", "Would send notification"} {
		if !planned[msg] {
			t.Errorf("missing dry-run log %q:\n%s", msg, buf.String())
		}
	}
}

func TestDryRun_WithoutRecordLogger(t *testing.T) {
	plan := &Plan{}
	ctx := context.Background()
	if err := NewDryRunWriter(plan).DeleteAlert(ctx, "XYZ", 50); err != nil {
		t.Fatal(err)
	}
	if err := NewDryRunNotifier(plan).Notify(ctx, "t", "b"); err != nil {
		t.Fatal(err)
	}
	if got := len(plan.Actions()); got != 2 {
		t.Errorf("planned %d actions, want 2", got)
	}
}

func TestDecideStock(t *testing.T) {
	tests := []struct {
		last, price float64
		event       string
		want        StockAction
	}{
		{100, 104.01, "", ActionUpdateAndNotify},
		{100, 95.99, "", ActionUpdateAndNotify},
		{100, 104, "", ActionNone},
		{100, 96, "", ActionNone},
		{100, 96, models.EventClose, ActionSync},
		{50, 52, models.EventClose, ActionSync},
	}

	for _, tt := range tests {
		got, err := DecideStock(tt.last, tt.price, DefaultMoveThreshold, tt.event)
		if err != nil {
			t.Fatalf("DecideStock(%v, %v): %v", tt.last, tt.price, err)
		}
		if got != tt.want {
			t.Errorf("DecideStock(%v, %v, %q) = %s, want %s", tt.last, tt.price, tt.event, got, tt.want)
		}
	}

	if _, err := DecideStock(0, 1, DefaultMoveThreshold, ""); !errors.Is(err, apperrors.ErrZeroBaseline) {
		t.Errorf("expected ErrZeroBaseline, got %v", err)
	}
}
