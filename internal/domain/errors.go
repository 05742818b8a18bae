package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotConfigured = errors.New("provider not configured")
	ErrHostingFailed = errors.New("asset hosting failed")
	ErrPollTimeout   = errors.New("video generation timed out")
)

// ProviderError reports a failed call to an external provider. Message holds
// the provider's own error text when one was returned, which is preferred
// over the bare HTTP status for user-facing reasons.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: request failed", e.Provider)
}

// NewProviderError builds a ProviderError for the named provider.
func NewProviderError(provider string, statusCode int, message string) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: message}
}

// IsProviderError reports whether err carries a ProviderError anywhere in its
// chain, returning it when present.
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
