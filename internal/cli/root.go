// Package cli provides the command-line interface for the alerting service.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockalerts/internal/config"
	"stockalerts/internal/logging"
	"stockalerts/internal/security"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. Configuration is loaded on first
// use so commands such as version work without any environment.
type App struct {
	Logger zerolog.Logger

	configDir string
	debug     bool
	config    *config.Config
}

// Config loads and validates the configuration, and reconfigures the logger
// from it.
func (a *App) Config() (*config.Config, error) {
	if a.config != nil {
		return a.config, nil
	}

	cfg, err := config.Load(a.configDir)
	if err != nil {
		return nil, err
	}
	a.config = cfg

	a.Logger = logging.NewLoggerWithConfig(cfg.Log)
	if a.debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return cfg, nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "stockalerts",
		Short: "Stock price change and target alerts",
		Long: `stockalerts checks tracked stocks and price-target alerts against the
latest close and sends push notifications.

A tracked stock notifies when its close moves more than the configured threshold
from the last committed price. A "close" event also syncs every stock's price.
An alert notifies once when the close crosses its target, then is deleted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.configDir, _ = cmd.Flags().GetString("config")
			app.debug, _ = cmd.Flags().GetBool("debug")
			if app.debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stockalerts)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newScheduleCmd(app))
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newSeedCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("stockalerts v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View, validate and initialise the configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redacted)
			}
			showConfig(output, &redacted)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.Config(); err != nil {
				if output.IsJSON() {
					_ = output.JSON(map[string]interface{}{"valid": false, "error": err.Error()})
				} else {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config.toml template",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path, err := config.WriteTemplate(app.configDir)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Success("Configuration template: %s", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.configDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Datastore")
	output.Printf("  URL:             %s\n", cfg.Datastore.URL)
	output.Printf("  API key:         %s\n", secret(cfg.Datastore.APIKey))
	output.Printf("  Timeout:         %s\n", cfg.Datastore.Timeout)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Push URL:        %s\n", cfg.Push.URL)
	output.Printf("  Push key:        %s\n", secret(cfg.Push.APIKey))
	output.Printf("  Webhook:         %s\n", orNone(cfg.Notify.WebhookURL))
	output.Println()

	output.Bold("Quotes")
	output.Printf("  Provider:        %s\n", cfg.Quotes.Provider)
	output.Printf("  Base URL:        %s\n", orNone(cfg.Quotes.BaseURL))
	output.Printf("  Timeout:         %s\n", cfg.Quotes.Timeout)
	output.Println()

	output.Bold("Evaluation")
	output.Printf("  Move threshold:  %.2f%%\n", cfg.Evaluation.MoveThreshold*100)
	output.Printf("  Concurrency:     %d\n", cfg.Evaluation.Concurrency)
	output.Println()

	output.Bold("Schedule")
	output.Printf("  Interval:        %s\n", cfg.Schedule.Interval)
	output.Printf("  Close time:      %s %s\n", cfg.Schedule.CloseTime, cfg.Schedule.Timezone)
	output.Printf("  Metrics listen:  %s\n", orNone(cfg.Metrics.ListenAddr))
	output.Printf("  Pushgateway:     %s\n", orNone(cfg.Metrics.PushgatewayURL))
}

func secret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return security.MaskCredential(s)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// durationFlag returns the flag value if it was set, else fallback.
func durationFlag(cmd *cobra.Command, name string, fallback time.Duration) time.Duration {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	d, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return fallback
	}
	return d
}
