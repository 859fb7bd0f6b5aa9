package tts

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("tts: API key required")
	ErrEmptyText           = errors.New("tts: empty text")
	ErrUnsupportedEncoding = errors.New("tts: unsupported audio encoding")
	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// APIError is an HTTP error returned by a speech API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // Provider specific, may be empty
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tts %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tts %s: status %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

// IsUnauthorized reports a rejected API key.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// IsForbidden reports a key without access to the API.
func (e *APIError) IsForbidden() bool { return e.StatusCode == http.StatusForbidden }

// IsRetryable reports rate limiting and server side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuth reports errors that retrying with the same credentials cannot fix.
func IsAuth(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.IsUnauthorized() || apiErr.IsForbidden())
}

// ProviderError tags a non-HTTP failure with the provider that hit it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("tts %s: %v", e.Provider, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
