package quotes

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

// ProviderKite is the name of the Zerodha Kite Connect provider.
const ProviderKite = "kite"

// KiteConfig holds configuration for the Kite provider.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// KiteProvider reads last traded prices from Kite Connect. Symbols use the
// EXCHANGE:TRADINGSYMBOL form, e.g. NSE:INFY.
type KiteProvider struct {
	client *kiteconnect.Client
}

// NewKiteProvider creates a new Kite provider. The access token is supplied by
// configuration; the interactive login flow is not handled here.
func NewKiteProvider(cfg KiteConfig) *KiteProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	client.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	if cfg.BaseURL != "" {
		client.SetBaseURI(strings.TrimRight(cfg.BaseURL, "/"))
	}

	return &KiteProvider{client: client}
}

// Name returns the provider name.
func (k *KiteProvider) Name() string {
	return ProviderKite
}

// GetLatestClose returns the last traded price for symbol.
func (k *KiteProvider) GetLatestClose(ctx context.Context, symbol string) (float64, error) {
	q, err := k.Quote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Close, nil
}

// Quote fetches the full quote for symbol and keeps its last price.
func (k *KiteProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderKite, symbol)
	}
	if err := ctx.Err(); err != nil {
		return models.Quote{}, apperrors.NewProviderError(ProviderKite, symbol, 0, err)
	}

	quotes, err := k.client.GetQuote(symbol)
	if err != nil {
		return models.Quote{}, apperrors.NewProviderError(ProviderKite, symbol, 0, fmt.Errorf("failed to get quote: %w", err))
	}

	q, ok := quotes[symbol]
	if !ok || q.LastPrice <= 0 {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderKite, symbol)
	}

	return models.Quote{
		Symbol:    symbol,
		Close:     q.LastPrice,
		Timestamp: q.LastTradeTime.Time,
	}, nil
}
