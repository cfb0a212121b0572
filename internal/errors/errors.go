// Package errors provides the error taxonomy shared by the alerting components.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrZeroBaseline  = errors.New("last price is zero, percentage move is undefined")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidEvent  = errors.New("invalid event")
)

// ConfigError reports a missing or invalid setting. It is fatal at startup.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %s", e.Key, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}

// ProviderError represents a transport or decoding failure from a quote provider.
type ProviderError struct {
	Provider string
	Symbol   string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error [%s] %s: status %d: %v", e.Provider, e.Symbol, e.Status, e.Err)
	}
	return fmt.Sprintf("provider error [%s] %s: %v", e.Provider, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, symbol string, status int, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Symbol:   symbol,
		Status:   status,
		Err:      err,
	}
}

// NotFoundError is returned when a provider has no data for a symbol.
type NotFoundError struct {
	Provider string
	Symbol   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("symbol not found [%s]: %s", e.Provider, e.Symbol)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(provider, symbol string) *NotFoundError {
	return &NotFoundError{Provider: provider, Symbol: symbol}
}

// DatastoreError represents a read or write failure against a collection.
type DatastoreError struct {
	Op         string
	Collection string
	Status     int
	Body       string
	Err        error
}

func (e *DatastoreError) Error() string {
	msg := fmt.Sprintf("datastore error [%s %s]", e.Op, e.Collection)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *DatastoreError) Unwrap() error {
	return e.Err
}

// NewDatastoreError creates a new DatastoreError.
func NewDatastoreError(op, collection string, err error) *DatastoreError {
	return &DatastoreError{
		Op:         op,
		Collection: collection,
		Err:        err,
	}
}

// NotifierError represents a failure delivering a push notification.
type NotifierError struct {
	Channel string
	Status  int
	Err     error
}

func (e *NotifierError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("notifier error [%s]: status %d: %v", e.Channel, e.Status, e.Err)
	}
	return fmt.Sprintf("notifier error [%s]: %v", e.Channel, e.Err)
}

func (e *NotifierError) Unwrap() error {
	return e.Err
}

// NewNotifierError creates a new NotifierError.
func NewNotifierError(channel string, status int, err error) *NotifierError {
	return &NotifierError{
		Channel: channel,
		Status:  status,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
