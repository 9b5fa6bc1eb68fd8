// Package llm defines the generative service contract shared by the
// narrative stages and the provider clients.
package llm

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrQuotaExceeded      = errors.New("llm quota exceeded")
	ErrInvalidCredentials = errors.New("llm credentials rejected")
	ErrUnavailable        = errors.New("llm unavailable")
)

// Request is a single-turn completion. System is fixed by the caller's stage
// and never carries learner input.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer returns the text of one completion. Implementations do not retry.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError maps an HTTP status from a provider to one of the package
// errors, or nil when the status is not a failure this package names.
func StatusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrInvalidCredentials
	case code >= 500:
		return ErrUnavailable
	}
	return nil
}
