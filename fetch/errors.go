package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Class partitions attempt errors by how the orchestrator reacts to them.
type Class string

const (
	// ClassTransport errors rotate to the next provider after a backoff.
	ClassTransport Class = "transport"
	// ClassRateLimited errors retry the same provider with a reduced
	// search depth.
	ClassRateLimited Class = "rate_limited"
	// ClassTerminal errors stop the operation immediately.
	ClassTerminal Class = "terminal"
)

// ErrDepthTooRestrictive is the explicit signal that the requested window is
// too small to contain required anchor data. It is surfaced, never retried.
var ErrDepthTooRestrictive = errors.New("search window too restrictive, request a larger history window")

// ErrCanceled is returned when cancellation fired before the next attempt.
var ErrCanceled = errors.New("fetch operation canceled")

type classifiedError struct {
	err   error
	class Class
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// RateLimited marks an error so the orchestrator reduces search depth
// instead of rotating providers.
func RateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassRateLimited}
}

// Terminal marks an error as not worth retrying.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal}
}

// rate-limit phrasings observed across public RPC gateways
var rateLimitMarkers = []string{
	"rate limit",
	"rate-limit",
	"too many requests",
	"429",
	"query returned more than",
	"block range is too wide",
	"block range too large",
	"exceed maximum block range",
	"response size exceeded",
	"limit exceeded",
}

// Classify decides how an attempt error should be handled.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return marked.class
	}
	if errors.Is(err, ErrDepthTooRestrictive) || errors.Is(err, context.Canceled) {
		return ClassTerminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransport
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return ClassRateLimited
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransport
	}
	return ClassTransport
}

// ProviderFailure is the last error seen on one endpoint.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// AllProvidersFailedError is terminal: every provider exhausted its retry
// budget. It carries the last error per provider for diagnostics.
type AllProvidersFailedError struct {
	Operation OperationType     `json:"operationType"`
	Attempts  int               `json:"attempts"`
	Failures  []ProviderFailure `json:"failures"`
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Provider, f.Reason))
	}
	return fmt.Sprintf("%s fetch failed after %d attempts (%s)", e.Operation, e.Attempts, strings.Join(parts, "; "))
}
