// Package providers holds the call signaling providers known to the service.
package providers

import (
	"context"
	"errors"

	"webconferencing/internal/calls"
)

// Provider is a call signaling backend.
//
// Rules:
// - Providers never change call state; the call engine owns it.
// - IMInfo returns nil when imID is not an account this provider can call.
type Provider interface {
	// Type is the provider's own type, used for its configuration.
	Type() string
	// SupportedTypes are the call and IM types the provider serves. It always
	// includes Type().
	SupportedTypes() []string
	Title() string
	Description() string

	IMInfo(ctx context.Context, imID string) (*calls.IMInfo, error)
}

// Configuration is the saved state of a provider merged with its metadata.
type Configuration struct {
	Type        string `json:"type"`
	Active      bool   `json:"active"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

var (
	ErrUnknownProvider = errors.New("providers: unknown provider")
	ErrInvalidIM       = errors.New("providers: invalid IM id")
)

var ErrInvalidConfiguration = errors.New("providers: invalid configuration")
