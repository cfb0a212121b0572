// Package config provides configuration management for the alerting service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	// Schedule timezones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/logging"
	"stockalerts/internal/security"
)

// Config holds all application configuration.
type Config struct {
	Datastore  DatastoreConfig   `mapstructure:"datastore"`
	Push       PushConfig        `mapstructure:"push"`
	Notify     NotifyConfig      `mapstructure:"notify"`
	Quotes     QuotesConfig      `mapstructure:"quotes"`
	Evaluation EvaluationConfig  `mapstructure:"evaluation"`
	Log        logging.LogConfig `mapstructure:"log"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Schedule   ScheduleConfig    `mapstructure:"schedule"`
}

// DatastoreConfig holds the datastore connection settings.
type DatastoreConfig struct {
	URL     string        `mapstructure:"url" validate:"required"`
	APIKey  string        `mapstructure:"api_key" json:"-"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// PushConfig holds Pushbullet settings.
type PushConfig struct {
	APIKey  string        `mapstructure:"api_key" json:"-"`
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// NotifyConfig holds optional extra notification channels. Disabled turns
// every channel off, and then no push key is needed.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	Disabled   bool   `mapstructure:"disabled"`
}

// QuotesConfig holds quote provider settings.
type QuotesConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=yahoo kite"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	KiteAPIKey      string        `mapstructure:"kite_api_key" json:"-"`
	KiteAccessToken string        `mapstructure:"kite_access_token" json:"-"`
}

// EvaluationConfig holds the evaluation rule parameters.
type EvaluationConfig struct {
	MoveThreshold float64 `mapstructure:"move_threshold" validate:"gt=0"`
	Concurrency   int     `mapstructure:"concurrency" validate:"min=1"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" validate:"omitempty,url"`
	Job            string `mapstructure:"job"`
	ListenAddr     string `mapstructure:"listen_addr"`
}

// ScheduleConfig holds settings for the built-in scheduler.
type ScheduleConfig struct {
	Interval  time.Duration `mapstructure:"interval" validate:"gt=0"`
	CloseTime string        `mapstructure:"close_time"`
	Timezone  string        `mapstructure:"timezone"`
}

// envBindings maps config keys to environment variables, most specific first.
// The trailing names are the ones used by earlier deployments.
var envBindings = map[string][]string{
	"datastore.url":             {"DATASTORE_URL", "SUPABASE_URL", "URL"},
	"datastore.api_key":         {"DATASTORE_API_KEY", "SUPABASEKEY", "APIKEY"},
	"datastore.timeout":         {"DATASTORE_TIMEOUT"},
	"push.api_key":              {"PUSH_API_KEY", "PUSH_KEY", "PUSHAPIKEY"},
	"push.url":                  {"PUSH_URL"},
	"push.timeout":              {"PUSH_TIMEOUT"},
	"notify.webhook_url":        {"NOTIFY_WEBHOOK_URL"},
	"notify.disabled":           {"NOTIFY_DISABLED"},
	"quotes.provider":           {"QUOTES_PROVIDER"},
	"quotes.base_url":           {"QUOTES_BASE_URL"},
	"quotes.timeout":            {"QUOTES_TIMEOUT"},
	"quotes.kite_api_key":       {"KITE_API_KEY"},
	"quotes.kite_access_token":  {"KITE_ACCESS_TOKEN"},
	"evaluation.move_threshold": {"MOVE_THRESHOLD"},
	"evaluation.concurrency":    {"EVALUATION_CONCURRENCY"},
	"log.level":                 {"LOG_LEVEL"},
	"log.file":                  {"LOG_FILE"},
	"log.file_path":             {"LOG_FILE_PATH"},
	"metrics.pushgateway_url":   {"PUSHGATEWAY_URL"},
	"metrics.job":               {"METRICS_JOB"},
	"metrics.listen_addr":       {"METRICS_LISTEN_ADDR"},
	"schedule.interval":         {"SCHEDULE_INTERVAL"},
	"schedule.close_time":       {"SCHEDULE_CLOSE_TIME"},
	"schedule.timezone":         {"SCHEDULE_TIMEZONE"},
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stockalerts"
	}
	return filepath.Join(home, ".config", "stockalerts")
}

// Load builds the configuration from a .env file in the working directory,
// config.toml in configDir and the environment, in increasing precedence.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, apperrors.Wrapf(err, "binding %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !apperrors.As(err, &notFound) {
			return nil, apperrors.Wrap(err, "reading config.toml")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultLogConfig()

	v.SetDefault("datastore.timeout", 10*time.Second)
	v.SetDefault("push.url", "https://api.pushbullet.com/v2/pushes")
	v.SetDefault("push.timeout", 10*time.Second)
	v.SetDefault("notify.disabled", false)
	v.SetDefault("quotes.provider", "yahoo")
	v.SetDefault("quotes.timeout", 10*time.Second)
	v.SetDefault("evaluation.move_threshold", 0.04)
	v.SetDefault("evaluation.concurrency", 1)
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.console", logDefaults.Console)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.file_path", logDefaults.FilePath)
	v.SetDefault("log.max_size", logDefaults.MaxSize)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age", logDefaults.MaxAge)
	v.SetDefault("metrics.job", "stockalerts")
	v.SetDefault("metrics.listen_addr", ":9108")
	v.SetDefault("schedule.interval", 15*time.Minute)
	v.SetDefault("schedule.close_time", "16:05")
	v.SetDefault("schedule.timezone", "America/New_York")
}

var validate = validator.New()

// Validate validates the configuration. The returned error is a
// *errors.ConfigError naming the first offending key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewConfigError(configKey(fe.Namespace()), describe(fe))
		}
		return apperrors.NewConfigError("config", err.Error())
	}

	if !c.Notify.Disabled && c.Push.APIKey == "" {
		return apperrors.NewConfigError("push.api_key", "missing required setting (PUSH_API_KEY)")
	}

	switch c.Datastore.Scheme() {
	case "http", "https", "sqlite", "postgres", "postgresql":
	default:
		return apperrors.NewConfigError("datastore.url", fmt.Sprintf("unsupported datastore URL %q, want http(s)://, sqlite:// or postgres://", c.Datastore.URL))
	}

	if c.Datastore.RequiresAPIKey() && c.Datastore.APIKey == "" {
		return apperrors.NewConfigError("datastore.api_key", "required for HTTP datastores (DATASTORE_API_KEY)")
	}

	if c.Quotes.Provider == "kite" && (c.Quotes.KiteAPIKey == "" || c.Quotes.KiteAccessToken == "") {
		return apperrors.NewConfigError("quotes.kite_api_key", "kite provider requires KITE_API_KEY and KITE_ACCESS_TOKEN")
	}

	if _, _, err := c.Schedule.Close(); err != nil {
		return apperrors.NewConfigError("schedule.close_time", err.Error())
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return apperrors.NewConfigError("schedule.timezone", err.Error())
	}

	return nil
}

// Scheme returns the lower-cased scheme of the datastore URL. SQLite paths
// such as sqlite://:memory: are not valid URLs, so the scheme is split off
// textually.
func (d DatastoreConfig) Scheme() string {
	scheme, _, ok := strings.Cut(d.URL, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// RequiresAPIKey reports whether the datastore URL points at the REST API.
func (d DatastoreConfig) RequiresAPIKey() bool {
	scheme := d.Scheme()
	return scheme == "http" || scheme == "https"
}

// Redacted returns a copy of c that is safe to print: passwords and
// credential parameters in URLs are masked.
func (c Config) Redacted() Config {
	c.Datastore.URL = security.RedactURL(c.Datastore.URL)
	c.Notify.WebhookURL = security.RedactURL(c.Notify.WebhookURL)
	c.Metrics.PushgatewayURL = security.RedactURL(c.Metrics.PushgatewayURL)
	return c
}

// Close parses CloseTime as HH:MM.
func (s ScheduleConfig) Close() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.CloseTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid close time %q, want HH:MM", s.CloseTime)
	}
	return t.Hour(), t.Minute(), nil
}

// Location loads the scheduler timezone.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// configKey turns a validator namespace like "Config.Push.APIKey" into the
// viper key "push.api_key".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	switch s {
	case "APIKey":
		return "api_key"
	case "URL":
		return "url"
	case "BaseURL":
		return "base_url"
	case "WebhookURL":
		return "webhook_url"
	case "PushgatewayURL":
		return "pushgateway_url"
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(fe validator.FieldError) string {
	key := configKey(fe.Namespace())
	envs := envBindings[key]
	hint := ""
	if len(envs) > 0 {
		hint = fmt.Sprintf(" (%s)", envs[0])
	}
	switch fe.Tag() {
	case "required":
		return "missing required setting" + hint
	case "url":
		return fmt.Sprintf("invalid URL %q%s", fe.Value(), hint)
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s=%s check (value %v)", fe.Tag(), fe.Param(), fe.Value())
	}
}
