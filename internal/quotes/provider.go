// Package quotes provides latest-close lookups against market data providers.
package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockalerts/internal/config"
	"stockalerts/internal/logging"
	"stockalerts/internal/metrics"
	"stockalerts/internal/models"
)

// Provider fetches prices for ticker symbols.
type Provider interface {
	// GetLatestClose returns the most recent close for ticker. Unknown
	// symbols yield *errors.NotFoundError; transport and decoding
	// failures yield *errors.ProviderError.
	GetLatestClose(ctx context.Context, ticker string) (float64, error)

	// Quote returns the latest close along with its timestamp.
	Quote(ctx context.Context, ticker string) (models.Quote, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// New creates the provider selected by cfg.Provider, instrumented with
// latency metrics and debug logging.
func New(cfg config.QuotesConfig, logger zerolog.Logger) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "", ProviderYahoo:
		p = NewYahooProvider(YahooConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case ProviderKite:
		p = NewKiteProvider(KiteConfig{
			APIKey:      cfg.KiteAPIKey,
			AccessToken: cfg.KiteAccessToken,
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.Provider)
	}
	return Instrument(p, logger), nil
}

// Instrument wraps p so every fetch is timed and logged.
func Instrument(p Provider, logger zerolog.Logger) Provider {
	return &instrumented{
		Provider: p,
		logger:   logging.WithOperation(logger, "quote"),
	}
}

type instrumented struct {
	Provider
	logger zerolog.Logger
}

func (i *instrumented) GetLatestClose(ctx context.Context, ticker string) (float64, error) {
	q, err := i.Quote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return q.Close, nil
}

func (i *instrumented) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	start := time.Now()
	q, err := i.Provider.Quote(ctx, ticker)
	metrics.ObserveQuoteFetch(i.Name(), start, err)
	logging.LogAPICall(logging.WithSymbol(i.logger, ticker), "GET", i.Name(), time.Since(start), err)
	return q, err
}
