package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a collaborator failure independently of which
// registry, e-sign or payment backend produced it.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRejected       ErrorCategory = "rejected"
	ErrorInternal       ErrorCategory = "internal"
)

// Transient reports whether a retry of the same call could succeed.
func (c ErrorCategory) Transient() bool {
	return c == ErrorTimeout || c == ErrorProviderOutage
}

// ProviderError is returned by every simulated collaborator. Message is safe
// to show the subscriber; Cause is not.
type ProviderError struct {
	Category ErrorCategory
	Provider string
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Category)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError builds a categorised failure for provider.
func NewProviderError(category ErrorCategory, provider, message string, cause error) *ProviderError {
	return &ProviderError{Category: category, Provider: provider, Message: message, Cause: cause}
}

// GetCategory returns the category of the first ProviderError in err's chain,
// or ErrorInternal when there is none.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

func IsRetryable(err error) bool {
	return GetCategory(err).Transient()
}
