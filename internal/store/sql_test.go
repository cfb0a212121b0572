package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stockalerts/internal/config"
	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStore_StocksLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	for _, st := range []models.StockRecord{{Name: "ABC", LastPrice: 100}, {Name: "XYZ", LastPrice: 50}} {
		if err := s.PutStock(ctx, st); err != nil {
			t.Fatalf("PutStock: %v", err)
		}
	}

	if err := s.UpdateStockPrice(ctx, "ABC", 104.01); err != nil {
		t.Fatalf("UpdateStockPrice: %v", err)
	}
	// Unknown names are a no-op.
	if err := s.UpdateStockPrice(ctx, "NOPE", 1); err != nil {
		t.Fatalf("UpdateStockPrice unknown: %v", err)
	}

	stocks, err := s.ListStocks(ctx)
	if err != nil {
		t.Fatalf("ListStocks: %v", err)
	}
	want := []models.StockRecord{{Name: "ABC", LastPrice: 104.01}, {Name: "XYZ", LastPrice: 50}}
	if len(stocks) != len(want) {
		t.Fatalf("got %d stocks, want %d", len(stocks), len(want))
	}
	for i := range want {
		if stocks[i] != want[i] {
			t.Errorf("stock %d = %+v, want %+v", i, stocks[i], want[i])
		}
	}
}

func TestSQLStore_DeleteAlertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	alerts := []models.AlertRecord{
		{Name: "XYZ", TargetPrice: 50, Direction: models.DirectionAbove},
		{Name: "XYZ", TargetPrice: 40, Direction: 0},
	}
	for _, a := range alerts {
		if err := s.PutAlert(ctx, a); err != nil {
			t.Fatalf("PutAlert: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		if err := s.DeleteAlert(ctx, "XYZ", 50); err != nil {
			t.Fatalf("DeleteAlert attempt %d: %v", i+1, err)
		}
	}

	got, err := s.ListAlerts(ctx)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(got) != 1 || got[0] != alerts[1] {
		t.Fatalf("remaining alerts = %+v, want only %+v", got, alerts[1])
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "a.db")

	ds, err := New(config.DatastoreConfig{URL: "sqlite://" + dbPath})
	if err != nil {
		t.Fatalf("New sqlite: %v", err)
	}
	defer ds.Close()
	if _, ok := ds.(*SQLStore); !ok {
		t.Errorf("sqlite url gave %T", ds)
	}
	if _, ok := ds.(Seeder); !ok {
		t.Error("SQLStore should implement Seeder")
	}

	ds, err = New(config.DatastoreConfig{URL: "https://x.supabase.co", APIKey: "k", Timeout: time.Second})
	if err != nil {
		t.Fatalf("New rest: %v", err)
	}
	if _, ok := ds.(*RESTStore); !ok {
		t.Errorf("https url gave %T", ds)
	}

	for _, url := range []string{"mysql://db", "alerts.db", ""} {
		_, err := New(config.DatastoreConfig{URL: url})
		var cfgErr *apperrors.ConfigError
		if !apperrors.As(err, &cfgErr) || cfgErr.Key != "datastore.url" {
			t.Errorf("New(%q) error = %v, want ConfigError for datastore.url", url, err)
		}
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `DELETE FROM alerts WHERE name = ? AND targetprice = ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := `DELETE FROM alerts WHERE name = $1 AND targetprice = $2`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %s, want %s", got, want)
	}
}

// Property: a committed lastprice is read back unchanged, and a deleted alert
// never reappears no matter how often it is deleted.
func TestProperty_StorePersistsCommittedState(t *testing.T) {
	s := newTestSQLiteStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN", "TSLA", "NVDA", "META", "NFLX"}
	var seq int

	properties.Property("update then list returns the committed price", prop.ForAll(
		func(symbolIdx int, initial, updated float64) bool {
			ctx := context.Background()
			seq++
			name := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], seq)

			if err := s.PutStock(ctx, models.StockRecord{Name: name, LastPrice: initial}); err != nil {
				t.Logf("PutStock: %v", err)
				return false
			}
			if err := s.UpdateStockPrice(ctx, name, updated); err != nil {
				t.Logf("UpdateStockPrice: %v", err)
				return false
			}

			stocks, err := s.ListStocks(ctx)
			if err != nil {
				t.Logf("ListStocks: %v", err)
				return false
			}
			for _, st := range stocks {
				if st.Name == name {
					return st.LastPrice == updated
				}
			}
			return false
		},
		gen.IntRange(0, len(symbols)-1),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
	))

	properties.Property("deleted alerts stay deleted", prop.ForAll(
		func(symbolIdx int, target float64, deletes int) bool {
			ctx := context.Background()
			seq++
			name := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], seq)

			if err := s.PutAlert(ctx, models.AlertRecord{Name: name, TargetPrice: target, Direction: 1}); err != nil {
				t.Logf("PutAlert: %v", err)
				return false
			}
			for i := 0; i < deletes; i++ {
				if err := s.DeleteAlert(ctx, name, target); err != nil {
					t.Logf("DeleteAlert: %v", err)
					return false
				}
			}

			alerts, err := s.ListAlerts(ctx)
			if err != nil {
				return false
			}
			for _, a := range alerts {
				if a.Name == name {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(symbols)-1),
		gen.Float64Range(1, 5000),
		gen.IntRange(1, 3),
	))

	properties.TestingRun(t)
}
