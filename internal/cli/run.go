package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockalerts/internal/config"
	"stockalerts/internal/engine"
	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
	"stockalerts/internal/notify"
	"stockalerts/internal/quotes"
	"stockalerts/internal/security"
	"stockalerts/internal/store"
	"stockalerts/internal/trigger"
	"stockalerts/pkg/utils"
)

// pipeline is everything one evaluation run needs.
type pipeline struct {
	datastore store.Datastore
	runner    *trigger.Runner
	plan      *engine.Plan
}

func (p *pipeline) Close() error {
	return p.datastore.Close()
}

// newPipeline wires the datastore, quote provider and notifier from cfg.
// In dry-run mode writes and notifications are recorded in plan instead.
func (a *App) newPipeline(cfg *config.Config, dryRun bool) (*pipeline, error) {
	ds, err := store.New(cfg.Datastore)
	if err != nil {
		return nil, err
	}

	provider, err := quotes.New(cfg.Quotes, a.Logger)
	if err != nil {
		ds.Close()
		return nil, err
	}

	p := &pipeline{datastore: ds}

	var writer engine.Writer = ds
	var sender engine.Sender = notify.New(cfg.Push, cfg.Notify, a.Logger)
	if dryRun {
		p.plan = &engine.Plan{}
		writer = engine.NewDryRunWriter(p.plan)
		sender = engine.NewDryRunNotifier(p.plan)
	}

	eng := engine.New(provider, writer, sender, engine.Config{
		MoveThreshold: cfg.Evaluation.MoveThreshold,
		Concurrency:   cfg.Evaluation.Concurrency,
	}, a.Logger)

	p.runner = trigger.NewRunner(ds, eng, trigger.RunnerConfig{
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		Job:            cfg.Metrics.Job,
	}, a.Logger)

	a.Logger.Debug().
		Str("datastore", security.RedactURL(cfg.Datastore.URL)).
		Str("quotes", provider.Name()).
		Bool("dry_run", dryRun).
		Msg("Pipeline ready")
	return p, nil
}

func newRunCmd(app *App) *cobra.Command {
	var (
		eventType string
		eventFile string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one evaluation of all stocks and alerts",
		Long: `Run one evaluation of all stocks and alerts.

The event can be read as JSON from a file or stdin (--event -), and
--event-type overrides its event_type. Exits non-zero when any record failed.`,
		Example: `  stockalerts run
  stockalerts run --event-type close
  echo '{"event_type":"close"}' | stockalerts run --event -
  stockalerts run --dry-run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}

			event, err := readEvent(cmd.InOrStdin(), eventFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("event-type") {
				event.EventType = eventType
			}

			p, err := app.newPipeline(cfg, dryRun)
			if err != nil {
				return err
			}
			defer p.Close()

			report, runErr := p.runner.Handle(contextOrBackground(cmd), event)
			output := NewOutput(cmd)
			if report == nil {
				return runErr
			}

			if output.IsJSON() {
				result := map[string]interface{}{"report": report}
				if p.plan != nil {
					result["plan"] = p.plan.Actions()
				}
				if err := output.JSON(result); err != nil {
					return err
				}
				return runErr
			}

			printReport(output, report)
			if p.plan != nil {
				printPlan(output, p.plan.Actions())
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&eventType, "event-type", "", `event type; "close" syncs every stock price`)
	cmd.Flags().StringVar(&eventFile, "event", "", "read the event JSON from a file, or - for stdin")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate without writing to the datastore or sending notifications")
	return cmd
}

func readEvent(stdin io.Reader, path string) (event models.Event, err error) {
	switch path {
	case "":
		return trigger.ParseEvent(nil)
	case "-":
		return trigger.ParseEvent(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return event, fmt.Errorf("opening event file: %w", err)
	}
	defer f.Close()
	return trigger.ParseEvent(f)
}

func newScheduleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run evaluations on an interval",
		Long: `Run evaluations on an interval until interrupted.

The first run at or after the close time on a weekday carries the close
event. Metrics and a health check are served on metrics.listen_addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}

			sched := cfg.Schedule
			sched.Interval = durationFlag(cmd, "interval", sched.Interval)
			if cmd.Flags().Changed("close-time") {
				sched.CloseTime, _ = cmd.Flags().GetString("close-time")
			}
			hour, minute, err := sched.Close()
			if err != nil {
				return apperrors.NewConfigError("schedule.close_time", err.Error())
			}

			p, err := app.newPipeline(cfg, false)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := trigger.NewScheduler(p.runner, trigger.SchedulerConfig{
				Interval:   sched.Interval,
				Clock:      utils.NewMarketClock(sched.Location(), hour, minute),
				ListenAddr: cfg.Metrics.ListenAddr,
			}, app.Logger)

			output := NewOutput(cmd)
			if !output.IsJSON() {
				output.Info("Scheduling runs every %s, close at %02d:%02d %s", sched.Interval, hour, minute, sched.Timezone)
			}
			return scheduler.Run(ctx)
		},
	}

	cmd.Flags().Duration("interval", 0, "time between runs (default from config)")
	cmd.Flags().String("close-time", "", "daily close time HH:MM (default from config)")
	return cmd
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
