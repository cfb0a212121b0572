package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

const restPrefix = "/rest/v1/"

// RESTConfig holds configuration for the PostgREST backend.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RESTStore implements Datastore against a PostgREST API such as Supabase.
type RESTStore struct {
	client *resty.Client
}

// NewRESTStore creates a new REST-backed store. Every request carries the
// key both as apikey and as a bearer token.
func NewRESTStore(cfg RESTConfig) *RESTStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &RESTStore{client: client}
}

// Close releases nothing; the HTTP client has no persistent state to free.
func (s *RESTStore) Close() error {
	return nil
}

// ListStocks retrieves every tracked stock.
func (s *RESTStore) ListStocks(ctx context.Context) ([]models.StockRecord, error) {
	var stocks []models.StockRecord
	if err := s.list(ctx, CollectionStocks, "name,lastprice", &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// ListAlerts retrieves every active alert.
func (s *RESTStore) ListAlerts(ctx context.Context) ([]models.AlertRecord, error) {
	var alerts []models.AlertRecord
	if err := s.list(ctx, CollectionAlerts, "name,targetprice,direction", &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *RESTStore) list(ctx context.Context, collection, columns string, out interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("select", columns).
		Get(restPrefix + collection)
	if err != nil {
		return apperrors.NewDatastoreError("list", collection, err)
	}
	if err := checkResponse("list", collection, resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return apperrors.NewDatastoreError("list", collection, fmt.Errorf("decoding rows: %w", err))
	}
	return nil
}

// UpdateStockPrice sets lastprice on the stock named name. Other columns are
// left untouched.
func (s *RESTStore) UpdateStockPrice(ctx context.Context, name string, price float64) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("name", "eq."+name).
		SetBody(map[string]float64{"lastprice": price}).
		Patch(restPrefix + CollectionStocks)
	if err != nil {
		return apperrors.NewDatastoreError("update", CollectionStocks, err)
	}
	return checkResponse("update", CollectionStocks, resp)
}

// DeleteAlert deletes alerts matching name and targetPrice.
func (s *RESTStore) DeleteAlert(ctx context.Context, name string, targetPrice float64) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("name", "eq."+name).
		SetQueryParam("targetprice", "eq."+strconv.FormatFloat(targetPrice, 'f', -1, 64)).
		Delete(restPrefix + CollectionAlerts)
	if err != nil {
		return apperrors.NewDatastoreError("delete", CollectionAlerts, err)
	}
	return checkResponse("delete", CollectionAlerts, resp)
}

// PutStock inserts a stock, replacing lastprice when the name exists.
func (s *RESTStore) PutStock(ctx context.Context, stock models.StockRecord) error {
	return s.insert(ctx, CollectionStocks, stock, "resolution=merge-duplicates,return=minimal")
}

// PutAlert inserts an alert.
func (s *RESTStore) PutAlert(ctx context.Context, alert models.AlertRecord) error {
	return s.insert(ctx, CollectionAlerts, alert, "return=minimal")
}

func (s *RESTStore) insert(ctx context.Context, collection string, row interface{}, prefer string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", prefer).
		SetBody(row).
		Post(restPrefix + collection)
	if err != nil {
		return apperrors.NewDatastoreError("insert", collection, err)
	}
	return checkResponse("insert", collection, resp)
}

func checkResponse(op, collection string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	e := apperrors.NewDatastoreError(op, collection, nil)
	e.Status = resp.StatusCode()
	e.Body = strings.TrimSpace(resp.String())
	return e
}
