// Package store provides access to the stocks and alerts collections.
package store

import (
	"context"
	"fmt"
	"strings"

	"stockalerts/internal/config"
	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

// Collection names.
const (
	CollectionStocks = "stocks"
	CollectionAlerts = "alerts"
)

// Datastore defines the operations an evaluation run needs.
type Datastore interface {
	// Stocks
	ListStocks(ctx context.Context) ([]models.StockRecord, error)
	UpdateStockPrice(ctx context.Context, name string, price float64) error

	// Alerts
	ListAlerts(ctx context.Context) ([]models.AlertRecord, error)
	// DeleteAlert removes every alert matching name and targetPrice. Deleting
	// an alert that no longer exists is not an error.
	DeleteAlert(ctx context.Context, name string, targetPrice float64) error

	Close() error
}

// Seeder is implemented by backends that accept direct inserts.
type Seeder interface {
	PutStock(ctx context.Context, stock models.StockRecord) error
	PutAlert(ctx context.Context, alert models.AlertRecord) error
}

// New opens the backend selected by the datastore URL scheme.
func New(cfg config.DatastoreConfig) (Datastore, error) {
	scheme, rest, ok := strings.Cut(cfg.URL, "://")
	if !ok {
		return nil, apperrors.NewConfigError("datastore.url", fmt.Sprintf("datastore URL %q has no scheme", cfg.URL))
	}

	switch strings.ToLower(scheme) {
	case "http", "https":
		return NewRESTStore(RESTConfig{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}), nil
	case "sqlite":
		return NewSQLiteStore(rest)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.URL)
	default:
		return nil, apperrors.NewConfigError("datastore.url", fmt.Sprintf("unsupported datastore scheme %q, want http(s), sqlite or postgres", scheme))
	}
}
