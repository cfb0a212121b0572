package notify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "stockalerts/internal/errors"
)

// DefaultPushbulletURL is the Pushbullet pushes endpoint.
const DefaultPushbulletURL = "https://api.pushbullet.com/v2/pushes"

// PushbulletConfig holds configuration for the Pushbullet channel.
type PushbulletConfig struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// PushbulletNotifier sends notes through the Pushbullet API.
type PushbulletNotifier struct {
	url     string
	enabled bool
	client  *resty.Client
}

// NewPushbulletNotifier creates a new PushbulletNotifier.
func NewPushbulletNotifier(cfg PushbulletConfig) *PushbulletNotifier {
	if cfg.URL == "" {
		cfg.URL = DefaultPushbulletURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PushbulletNotifier{
		url:     cfg.URL,
		enabled: cfg.APIKey != "",
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Access-Token", cfg.APIKey).
			SetHeader("Content-Type", "application/json"),
	}
}

// Name returns the name of the notifier.
func (p *PushbulletNotifier) Name() string {
	return "pushbullet"
}

// IsEnabled returns whether the notifier is enabled.
func (p *PushbulletNotifier) IsEnabled() bool {
	return p.enabled
}

// Send pushes n as a note.
func (p *PushbulletNotifier) Send(ctx context.Context, n Notification) error {
	payload := map[string]string{
		"type":  "note",
		"title": n.Title,
		"body":  n.Message,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(p.url)
	if err != nil {
		return apperrors.NewNotifierError(p.Name(), 0, err)
	}
	if !resp.IsSuccess() {
		return statusError(p.Name(), resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// WebhookConfig holds configuration for the webhook channel.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *resty.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.URL != "",
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "stockalerts/1.0"),
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send posts n as JSON.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"symbol":    n.Symbol,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return apperrors.NewNotifierError(w.Name(), 0, err)
	}
	if !resp.IsSuccess() {
		return statusError(w.Name(), resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
