package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockalerts/internal/engine"
	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/logging"
	"stockalerts/internal/metrics"
	"stockalerts/internal/models"
	"stockalerts/internal/store"
)

// Loader reads the two collections a run evaluates.
type Loader interface {
	ListStocks(ctx context.Context) ([]models.StockRecord, error)
	ListAlerts(ctx context.Context) ([]models.AlertRecord, error)
}

// Evaluator applies the rules to a loaded batch.
type Evaluator interface {
	Evaluate(ctx context.Context, stocks []models.StockRecord, alerts []models.AlertRecord, eventType string) *engine.Report
}

// RunnerConfig holds the metrics settings of a runner.
type RunnerConfig struct {
	PushgatewayURL string
	Job            string
	PushTimeout    time.Duration
}

// Runner performs one evaluation run per event.
type Runner struct {
	loader    Loader
	evaluator Evaluator
	cfg       RunnerConfig
	logger    zerolog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(loader Loader, evaluator Evaluator, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if cfg.Job == "" {
		cfg.Job = "stockalerts"
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 10 * time.Second
	}
	return &Runner{
		loader:    loader,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    logger.With().Str("component", "runner").Logger(),
	}
}

// Handle runs one evaluation for event. A failure to load either collection
// fails the run before anything is evaluated and returns a nil report.
// Otherwise the report is returned together with its aggregated record error.
func (r *Runner) Handle(ctx context.Context, event models.Event) (*engine.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := logging.WithRunID(r.logger, runID)
	ctx = logging.ContextWithRunID(ctx, runID)

	logger.Info().Str("event_type", event.EventType).Msg("Evaluation run started")

	stocks, err := r.loader.ListStocks(ctx)
	if err != nil {
		return nil, r.loadFailed(ctx, logger, event, store.CollectionStocks, start, err)
	}
	alerts, err := r.loader.ListAlerts(ctx)
	if err != nil {
		return nil, r.loadFailed(ctx, logger, event, store.CollectionAlerts, start, err)
	}

	report := r.evaluator.Evaluate(ctx, stocks, alerts, event.EventType)
	report.RunID = runID
	report.Duration = time.Since(start)

	failures := report.FailureCount()
	logging.LogRunSummary(logger, event.EventType,
		report.StocksChecked+report.AlertsChecked,
		report.StocksUpdated, report.MoveNotifications, report.AlertsTriggered,
		failures, report.Duration)

	status := "ok"
	if failures > 0 {
		status = "partial"
	}
	r.finish(ctx, logger, event, status, start)

	return report, report.Err()
}

func (r *Runner) loadFailed(ctx context.Context, logger zerolog.Logger, event models.Event, collection string, start time.Time, err error) error {
	var dsErr *apperrors.DatastoreError
	if !apperrors.As(err, &dsErr) {
		err = apperrors.NewDatastoreError("list", collection, err)
	}
	logger.Error().Err(err).Str("collection", collection).Msg("Loading collection failed")
	r.finish(ctx, logger, event, "error", start)
	return err
}

func (r *Runner) finish(ctx context.Context, logger zerolog.Logger, event models.Event, status string, start time.Time) {
	metrics.RunsTotal.WithLabelValues(eventLabel(event), status).Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	metrics.LastRunTimestamp.SetToCurrentTime()

	if r.cfg.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, r.cfg.PushTimeout)
	defer cancel()
	if err := metrics.Push(pushCtx, r.cfg.PushgatewayURL, r.cfg.Job); err != nil {
		logger.Warn().Err(err).Msg("Metrics push failed")
	}
}

func eventLabel(event models.Event) string {
	if event.EventType == "" {
		return "none"
	}
	return event.EventType
}
