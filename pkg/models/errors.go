package models

import "errors"

// Error taxonomy shared by every valuation component.
// Callers wrap these with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrInvalidInput marks inputs that violate a documented precondition
	// (non-positive forecast horizon, empty cash flow series, bad ranges).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDivisionUndefined is returned when a formula divides by zero,
	// e.g. a perpetuity terminal value with WACC equal to terminal growth.
	ErrDivisionUndefined = errors.New("division undefined")

	// ErrNotFound is returned when a target company cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingFailure wraps any failure of the text embedding provider.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrNoValidPeers means no peer survived vector validation and ranking.
	ErrNoValidPeers = errors.New("no valid peers")

	// ErrUnavailable means neither the DCF nor the peer signal produced a usable value.
	ErrUnavailable = errors.New("valuation unavailable")
)
