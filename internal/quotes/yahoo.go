package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

// ProviderYahoo is the name of the Yahoo Finance chart provider.
const ProviderYahoo = "yahoo"

// DefaultYahooBaseURL is the public chart API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooConfig holds configuration for the Yahoo provider.
type YahooConfig struct {
	BaseURL string
	Timeout time.Duration
}

// YahooProvider reads the daily close from the Yahoo Finance chart API.
type YahooProvider struct {
	client *resty.Client
}

// NewYahooProvider creates a new Yahoo provider.
func NewYahooProvider(cfg YahooConfig) *YahooProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		// The chart API rejects requests without a browser-like agent.
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; stockalerts/1.0)")

	return &YahooProvider{client: client}
}

// Name returns the provider name.
func (y *YahooProvider) Name() string {
	return ProviderYahoo
}

// chartResponse is the subset of /v8/finance/chart the provider reads.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64    `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GetLatestClose returns the latest daily close for ticker.
func (y *YahooProvider) GetLatestClose(ctx context.Context, ticker string) (float64, error) {
	q, err := y.Quote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return q.Close, nil
}

// Quote fetches the one-day chart for ticker and returns its last close.
func (y *YahooProvider) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderYahoo, ticker)
	}

	resp, err := y.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParam("range", "1d").
		SetQueryParam("interval", "1d").
		Get("/v8/finance/chart/{ticker}")
	if err != nil {
		return models.Quote{}, apperrors.NewProviderError(ProviderYahoo, ticker, 0, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderYahoo, ticker)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(resp.Body(), &chart)

	if decodeErr == nil && chart.Chart.Error != nil && strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderYahoo, ticker)
	}
	if resp.IsError() {
		return models.Quote{}, apperrors.NewProviderError(ProviderYahoo, ticker, resp.StatusCode(),
			fmt.Errorf("unexpected response: %s", truncate(resp.String(), 200)))
	}
	if decodeErr != nil {
		return models.Quote{}, apperrors.NewProviderError(ProviderYahoo, ticker, resp.StatusCode(),
			fmt.Errorf("decoding chart: %w", decodeErr))
	}
	if chart.Chart.Error != nil {
		return models.Quote{}, apperrors.NewProviderError(ProviderYahoo, ticker, resp.StatusCode(),
			fmt.Errorf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderYahoo, ticker)
	}

	price, ts, ok := chart.Chart.Result[0].latestClose()
	if !ok {
		return models.Quote{}, apperrors.NewNotFoundError(ProviderYahoo, ticker)
	}

	return models.Quote{Symbol: ticker, Close: price, Timestamp: ts}, nil
}

// latestClose picks the last non-null close, falling back to the regular
// market price in the meta block.
func (r chartResult) latestClose() (float64, time.Time, bool) {
	if len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] == nil {
				continue
			}
			var ts time.Time
			if i < len(r.Timestamp) {
				ts = time.Unix(r.Timestamp[i], 0).UTC()
			}
			return *closes[i], ts, true
		}
	}

	if r.Meta.RegularMarketPrice != nil {
		var ts time.Time
		if r.Meta.RegularMarketTime > 0 {
			ts = time.Unix(r.Meta.RegularMarketTime, 0).UTC()
		}
		return *r.Meta.RegularMarketPrice, ts, true
	}

	return 0, time.Time{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
