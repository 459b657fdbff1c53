// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrMissingAPIKey    = errors.New("API key not configured")
	ErrRateLimited      = errors.New("rate limited")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrNoMarkets        = errors.New("no markets found in the requested window")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
)

// APIError represents an error response from the CoinMetrics API.
type APIError struct {
	Status  int
	Type    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error [%d %s]: %s: %v", e.Status, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("api error [%d %s]: %s", e.Status, e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the request that produced this error can be
// retried (rate limits and server-side failures).
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// NewAPIError creates a new APIError.
func NewAPIError(status int, errType, message string, err error) *APIError {
	return &APIError{
		Status:  status,
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// CatalogError represents a failure while fetching or filtering the
// market catalog for a data type.
type CatalogError struct {
	DataType string
	Exchange string
	Err      error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error [%s] %s: %v", e.DataType, e.Exchange, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// NewCatalogError creates a new CatalogError.
func NewCatalogError(dataType, exchange string, err error) *CatalogError {
	return &CatalogError{
		DataType: dataType,
		Exchange: exchange,
		Err:      err,
	}
}

// FetchError represents a failure while fetching timeseries data for an
// expiry group.
type FetchError struct {
	DataType string
	Expiry   string
	Markets  int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error [%s] expiry %s (%d markets): %v", e.DataType, e.Expiry, e.Markets, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(dataType, expiry string, markets int, err error) *FetchError {
	return &FetchError{
		DataType: dataType,
		Expiry:   expiry,
		Markets:  markets,
		Err:      err,
	}
}

// ExportError represents a failure while writing a per-market CSV file.
type ExportError struct {
	Market string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Market, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(market, path string, err error) *ExportError {
	return &ExportError{
		Market: market,
		Path:   path,
		Err:    err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
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
