package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"stockalerts/internal/engine"
	"stockalerts/internal/metrics"
	"stockalerts/internal/models"
	"stockalerts/pkg/utils"
)

// EventHandler runs one evaluation for an event. *Runner implements it.
type EventHandler interface {
	Handle(ctx context.Context, event models.Event) (*engine.Report, error)
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	Interval   time.Duration
	Clock      utils.MarketClock
	ListenAddr string
}

// RunStatus describes the most recent scheduled run.
type RunStatus struct {
	At        time.Time `json:"at"`
	EventType string    `json:"event_type"`
	Failures  int       `json:"failures"`
	Error     string    `json:"error,omitempty"`
}

// Scheduler invokes an EventHandler on a fixed interval. The first tick at or
// after the close on a trading day carries the close event, once per day.
// Ticks are handled one at a time, so runs never overlap.
type Scheduler struct {
	handler EventHandler
	cfg     SchedulerConfig
	logger  zerolog.Logger
	now     func() time.Time

	mu           sync.Mutex
	lastCloseDay string
	last         *RunStatus
}

// NewScheduler creates a new Scheduler.
func NewScheduler(handler EventHandler, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &Scheduler{
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}
}

// Run handles a tick immediately and then every interval until ctx is done.
// When a listen address is configured it also serves /metrics and /healthz.
func (s *Scheduler) Run(ctx context.Context) error {
	var srv *http.Server
	if s.cfg.ListenAddr != "" {
		srv = &http.Server{
			Addr:              s.cfg.ListenAddr,
			Handler:           s.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("Metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Time("next_close", s.cfg.Clock.NextClose(s.now())).
		Msg("Scheduler started")

	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopping")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					s.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
				}
			}
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled run and returns the event it used.
func (s *Scheduler) Tick(ctx context.Context) models.Event {
	now := s.now()
	event := s.eventAt(now)

	report, err := s.handler.Handle(ctx, event)

	status := &RunStatus{At: now, EventType: event.EventType}
	if report != nil {
		status.Failures = report.FailureCount()
	}
	if err != nil {
		status.Error = err.Error()
		s.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("Scheduled run reported errors")
	}

	s.mu.Lock()
	// A close run that could not load its records is retried on the next tick.
	if event.IsClose() && report != nil {
		s.lastCloseDay = s.cfg.Clock.Day(now)
	}
	s.last = status
	s.mu.Unlock()

	return event
}

func (s *Scheduler) eventAt(t time.Time) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Clock.IsAfterClose(t) && s.lastCloseDay != s.cfg.Clock.Day(t) {
		return models.Event{EventType: models.EventClose}
	}
	return models.Event{}
}

// LastRun returns the status of the most recent run, or nil before the first.
func (s *Scheduler) LastRun() *RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	status := *s.last
	return &status
}

// Router returns the scheduler's HTTP routes.
func (s *Scheduler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Scheduler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "ok",
		"market_status": s.cfg.Clock.Status(now),
		"next_close":    s.cfg.Clock.NextClose(now),
		"last_run":      s.LastRun(),
	})
}
