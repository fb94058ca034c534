package research

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError means no credential is configured for the provider a
// technique requires. Raised at dispatch time, before any task is created.
type ConfigurationError struct {
	Technique string
	Provider  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no credential configured for provider %q (technique %q)", e.Provider, e.Technique)
}

// ExternalServiceError covers provider failures, timeouts, and malformed
// responses. The in-flight task is marked failed with this diagnostic; retry
// happens only via queue redelivery, never via an inner loop.
type ExternalServiceError struct {
	Provider string
	Msg      string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Msg)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// DataError means a market or research record is missing or malformed.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string {
	return e.Msg
}

// StalenessError is produced only by the administrative cleanup sweep.
type StalenessError struct {
	Age       time.Duration
	Threshold time.Duration
}

func (e *StalenessError) Error() string {
	return fmt.Sprintf("task stale for %s (threshold %s), force-failed by cleanup sweep", e.Age, e.Threshold)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsDataError(err error) bool {
	var target *DataError
	return errors.As(err, &target)
}
