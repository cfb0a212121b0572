// Package notify provides push notification delivery.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stockalerts/internal/config"
	apperrors "stockalerts/internal/errors"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Notify sends a plain title/body notification.
	Notify(ctx context.Context, title, body string) error
	Send(ctx context.Context, n Notification) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Symbol    string
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPriceMove NotificationType = "price_move"
	NotificationAlert     NotificationType = "alert"
	NotificationInfo      NotificationType = "info"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// New creates the configured notifier: a MultiNotifier with Pushbullet and,
// when configured, a webhook, or a NoOpNotifier when notifications are
// disabled.
func New(push config.PushConfig, extra config.NotifyConfig, logger zerolog.Logger) Notifier {
	if extra.Disabled {
		logger.Info().Str("component", "notify").Msg("Notifications disabled")
		return NewNoOpNotifier()
	}

	mn := NewMultiNotifier(logger)
	mn.AddChannel(NewPushbulletNotifier(PushbulletConfig{
		APIKey:  push.APIKey,
		URL:     push.URL,
		Timeout: push.Timeout,
	}))
	if extra.WebhookURL != "" {
		mn.AddChannel(NewWebhookNotifier(WebhookConfig{
			URL:     extra.WebhookURL,
			Timeout: push.Timeout,
		}))
	}
	return mn
}

// NewMultiNotifier creates a MultiNotifier without channels.
func NewMultiNotifier(logger zerolog.Logger) *MultiNotifier {
	return &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of the enabled channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()

	var names []string
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Notify sends a plain title/body notification to every channel.
func (mn *MultiNotifier) Notify(ctx context.Context, title, body string) error {
	return mn.Send(ctx, Notification{Type: NotificationInfo, Title: title, Message: body})
}

// Send sends a notification to all enabled channels. Every channel is tried;
// failures are aggregated into a single *errors.NotifierError.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			mn.logger.Warn().Err(err).Str("channel", ch.Name()).Str("title", n.Title).Msg("Notification failed")
			errs = append(errs, err)
			continue
		}
		mn.logger.Debug().Str("channel", ch.Name()).Str("title", n.Title).Msg("Notification sent")
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		var ne *apperrors.NotifierError
		if apperrors.As(errs[0], &ne) {
			return ne
		}
		return apperrors.NewNotifierError("multi", 0, errs[0])
	default:
		return apperrors.NewNotifierError("multi", 0, apperrors.Join(errs...))
	}
}

// NoOpNotifier drops every notification. New returns it when notifications
// are disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Notify does nothing.
func (n *NoOpNotifier) Notify(ctx context.Context, title, body string) error {
	return nil
}

// Send does nothing.
func (n *NoOpNotifier) Send(ctx context.Context, notif Notification) error {
	return nil
}

func statusError(channel string, status int, body string) error {
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return apperrors.NewNotifierError(channel, status, fmt.Errorf("unexpected response: %s", body))
}
