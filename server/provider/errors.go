package provider

import "errors"

var (
	// ErrNoHealthyProvider indicates that no healthy provider is available
	ErrNoHealthyProvider = errors.New("no healthy provider available")

	// ErrNotConfigured is returned by a provider that has no API key to use.
	ErrNotConfigured = errors.New("provider API key not configured")
)
