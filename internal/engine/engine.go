// Package engine applies the stock-price and alert rules to one batch of records.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/logging"
	"stockalerts/internal/metrics"
	"stockalerts/internal/models"
	"stockalerts/internal/notify"
	"stockalerts/pkg/utils"
)

// PriceSource returns the latest close for a ticker.
type PriceSource interface {
	GetLatestClose(ctx context.Context, ticker string) (float64, error)
}

// Writer performs the two mutations a run can make.
type Writer interface {
	UpdateStockPrice(ctx context.Context, name string, price float64) error
	DeleteAlert(ctx context.Context, name string, targetPrice float64) error
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, n notify.Notification) error
}

// Config holds the rule parameters.
type Config struct {
	MoveThreshold float64
	Concurrency   int
}

// DefaultConfig returns the default rule parameters.
func DefaultConfig() Config {
	return Config{
		MoveThreshold: DefaultMoveThreshold,
		Concurrency:   1,
	}
}

// Engine evaluates stocks and alerts against fresh quotes.
type Engine struct {
	quotes   PriceSource
	writer   Writer
	notifier Sender
	cfg      Config
	validate *validator.Validate
	logger   zerolog.Logger
}

// New creates a new Engine.
func New(quotes PriceSource, writer Writer, notifier Sender, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.MoveThreshold <= 0 {
		cfg.MoveThreshold = DefaultMoveThreshold
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Engine{
		quotes:   quotes,
		writer:   writer,
		notifier: notifier,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Evaluate runs the stock-price rule over stocks and the alert rule over
// alerts. Failures are isolated per record and collected in the report;
// Evaluate itself never fails.
func (e *Engine) Evaluate(ctx context.Context, stocks []models.StockRecord, alerts []models.AlertRecord, eventType string) *Report {
	start := time.Now()
	runID := logging.RunIDFromContext(ctx)
	report := &Report{RunID: runID, EventType: eventType}

	logger := e.logger
	if runID != "" {
		logger = logging.WithRunID(logger, runID)
	}

	if e.cfg.Concurrency == 1 {
		for _, stock := range stocks {
			e.evaluateStock(ctx, logger, report, stock, eventType)
		}
		for _, alert := range alerts {
			e.evaluateAlert(ctx, logger, report, alert)
		}
	} else {
		// Each record's fetch, write and notify steps stay inside one task.
		p := pool.New().WithMaxGoroutines(e.cfg.Concurrency)
		for _, stock := range stocks {
			stock := stock
			p.Go(func() { e.evaluateStock(ctx, logger, report, stock, eventType) })
		}
		for _, alert := range alerts {
			alert := alert
			p.Go(func() { e.evaluateAlert(ctx, logger, report, alert) })
		}
		p.Wait()
	}

	report.Duration = time.Since(start)
	return report
}

func (e *Engine) evaluateStock(ctx context.Context, base zerolog.Logger, report *Report, stock models.StockRecord, eventType string) {
	report.add(&report.StocksChecked)
	logger := logging.WithSymbol(base, stock.Name)
	ctx = logging.WithLogger(ctx, logger)

	if err := e.validate.Struct(stock); err != nil {
		e.fail(report, logger, KindStock, stock.Name, StageValidate, fmt.Errorf("%w: %v", apperrors.ErrInvalidRecord, err))
		return
	}

	price, err := e.quotes.GetLatestClose(ctx, stock.Name)
	if err != nil {
		e.fail(report, logger, KindStock, stock.Name, StageQuote, err)
		return
	}

	action, err := DecideStock(stock.LastPrice, price, e.cfg.MoveThreshold, eventType)
	if err != nil {
		e.fail(report, logger, KindStock, stock.Name, StageCompare, err)
		return
	}

	logger.Debug().
		Float64("last_price", stock.LastPrice).
		Float64("price", price).
		Str("action", action.String()).
		Msg("Stock evaluated")

	if action == ActionNone {
		return
	}

	rounded := utils.RoundPrice(price)
	if err := e.writer.UpdateStockPrice(ctx, stock.Name, rounded); err != nil {
		// Nothing is announced for a price that was not committed.
		e.fail(report, logger, KindStock, stock.Name, StageUpdate, err)
		return
	}
	report.add(&report.StocksUpdated)
	metrics.StockUpdates.Inc()

	move, _ := PercentMove(stock.LastPrice, price)
	if action == ActionSync {
		logging.LogPriceMove(logger, stock.Name, stock.LastPrice, rounded, move*100, false)
		return
	}

	n := notify.PriceMoveNotification(stock.Name, stock.LastPrice, price)
	if err := e.notifier.Send(ctx, n); err != nil {
		e.fail(report, logger, KindStock, stock.Name, StageNotify, err)
		return
	}
	report.add(&report.MoveNotifications)
	metrics.MoveNotifications.Inc()
	logging.LogPriceMove(logger, stock.Name, stock.LastPrice, rounded, move*100, true)
}

func (e *Engine) evaluateAlert(ctx context.Context, base zerolog.Logger, report *Report, alert models.AlertRecord) {
	report.add(&report.AlertsChecked)
	logger := logging.WithSymbol(base, alert.Name)
	ctx = logging.WithLogger(ctx, logger)

	if err := e.validate.Struct(alert); err != nil {
		e.fail(report, logger, KindAlert, alert.Name, StageValidate, fmt.Errorf("%w: %v", apperrors.ErrInvalidRecord, err))
		return
	}

	price, err := e.quotes.GetLatestClose(ctx, alert.Name)
	if err != nil {
		e.fail(report, logger, KindAlert, alert.Name, StageQuote, err)
		return
	}

	if !alert.Crossed(price) {
		logger.Debug().
			Float64("target", alert.TargetPrice).
			Float64("price", price).
			Str("condition", alert.Condition()).
			Msg("Alert not triggered")
		return
	}

	// Notify first: a failed send keeps the alert for the next run.
	if err := e.notifier.Send(ctx, notify.TargetHitNotification(alert, price)); err != nil {
		e.fail(report, logger, KindAlert, alert.Name, StageNotify, err)
		return
	}
	report.add(&report.AlertsTriggered)
	metrics.AlertsTriggered.Inc()
	logging.LogAlertTriggered(logger, alert.Name, alert.Condition(), alert.TargetPrice, price)

	if err := e.writer.DeleteAlert(ctx, alert.Name, alert.TargetPrice); err != nil {
		logger.Warn().Msg("Alert was notified but not deleted and may fire again")
		e.fail(report, logger, KindAlert, alert.Name, StageDelete, err)
		return
	}
	report.add(&report.AlertsCleared)
	metrics.AlertsCleared.Inc()
}

func (e *Engine) fail(report *Report, logger zerolog.Logger, kind Kind, symbol string, stage Stage, err error) {
	report.fail(RecordFailure{Kind: kind, Symbol: symbol, Stage: stage, Err: err})
	metrics.RecordFailures.WithLabelValues(string(kind), string(stage)).Inc()

	level := zerolog.ErrorLevel
	if apperrors.IsNotFound(err) {
		level = zerolog.WarnLevel
	}
	logger.WithLevel(level).Err(err).
		Str("kind", string(kind)).
		Str("stage", string(stage)).
		Msg("Record evaluation failed")
}
