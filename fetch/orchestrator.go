// Package fetch executes one resilient fetch operation against a rotation
// of RPC providers: exponential backoff between providers, search-depth
// reduction on rate limits, and cooperative cancellation.
package fetch

import (
	"context"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/bridgelens-io/bridgelens/chainman"
	"github.com/bridgelens-io/bridgelens/metrics"
)

// OperationType names what a fetch operation retrieves.
type OperationType string

const (
	OperationClaims    OperationType = "claims"
	OperationTransfers OperationType = "transfers"
)

// Status is one retry-status notification, emitted on every transition into
// a new attempt after the first. Purely advisory.
type Status struct {
	OperationID   string        `json:"operationId"`
	OperationType OperationType `json:"operationType"`
	Attempt       int           `json:"attempt"`
	MaxAttempts   int           `json:"maxAttempts"`
	DelayMs       int64         `json:"delayMs"`
}

// Notifier receives retry-status notifications.
type Notifier interface {
	Notify(Status)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Status)

func (f NotifierFunc) Notify(s Status) { f(s) }

// Orchestrator holds the pieces shared by all operations on one network.
type Orchestrator struct {
	network  string
	policy   RetryPolicy
	notifier Notifier
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Orchestrator)

// WithNotifier attaches a retry-status receiver.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithSleep replaces the real clock, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func NewOrchestrator(network string, policy RetryPolicy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		network: network,
		policy:  policy,
		sleep:   sleepCtx,
	}
	for _, op := range opts {
		op(o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AttemptFunc performs one attempt against one provider with the given
// window.
type AttemptFunc[T any] func(ctx context.Context, p *chainman.Provider, window Window) (T, error)

// Run drives one fetch operation to DONE or FAILED. Providers are tried in
// stable order; the returned Window reflects any depth reductions so the
// caller knows how much history the result actually covers.
func Run[T any](ctx context.Context, o *Orchestrator, providers []*chainman.Provider, op OperationType, window Window, attemptFn AttemptFunc[T]) (T, Window, error) {
	var zero T
	if len(providers) == 0 {
		return zero, window, chainman.ErrNoProviders
	}

	opID := uuid.NewString()
	maxAttempts := o.policy.MaxRetries * len(providers)
	lastErr := make(map[string]error, len(providers))
	providerIdx := 0

	log := logger.WithFields(logger.Fields{
		"network":   o.network,
		"operation": string(op),
		"opId":      opID,
	})

	for attempt := 1; ; attempt++ {
		// cancellation flag, checked before every attempt
		if ctx.Err() != nil {
			return zero, window, ErrCanceled
		}

		p := providers[providerIdx]
		metrics.FetchAttemptsTotal.WithLabelValues(o.network, string(op)).Inc()

		result, err := attemptFn(ctx, p, window)
		if err == nil {
			log.WithField("attempt", attempt).Debugf("fetch done via %s", p.URL)
			return result, window, nil
		}

		lastErr[p.URL] = err
		metrics.ProviderFailuresTotal.WithLabelValues(o.network, p.URL).Inc()

		switch Classify(err) {
		case ClassTerminal:
			log.Warnf("fetch aborted: %v", err)
			return zero, window, err

		case ClassRateLimited:
			if window.Reductions < o.policy.MaxDepthReductions {
				window = window.Reduce(o.policy.DepthReductionFactor)
				metrics.DepthReductionsTotal.WithLabelValues(o.network, string(op)).Inc()
				log.Warnf("rate limited by %s, window reduced to %.2fh", p.URL, window.Hours)
				if attempt >= maxAttempts {
					return zero, window, o.failed(op, attempt, providers, lastErr)
				}
				// same provider, no backoff: the smaller range is the remedy
				o.notify(Status{OperationID: opID, OperationType: op, Attempt: attempt + 1, MaxAttempts: maxAttempts})
				continue
			}
			// depth budget spent; treat the provider as failed
			fallthrough

		default: // ClassTransport
			if attempt >= maxAttempts {
				return zero, window, o.failed(op, attempt, providers, lastErr)
			}
			delay := o.policy.Backoff(attempt)
			providerIdx = (providerIdx + 1) % len(providers)
			log.Warnf("attempt %d/%d via %s failed (%v), next provider in %s", attempt, maxAttempts, p.URL, err, delay)
			o.notify(Status{
				OperationID:   opID,
				OperationType: op,
				Attempt:       attempt + 1,
				MaxAttempts:   maxAttempts,
				DelayMs:       delay.Milliseconds(),
			})
			if err := o.sleep(ctx, delay); err != nil {
				return zero, window, ErrCanceled
			}
		}
	}
}

func (o *Orchestrator) notify(s Status) {
	if o.notifier != nil {
		o.notifier.Notify(s)
	}
}

func (o *Orchestrator) failed(op OperationType, attempts int, providers []*chainman.Provider, lastErr map[string]error) error {
	failures := make([]ProviderFailure, 0, len(lastErr))
	for _, p := range providers {
		if err, ok := lastErr[p.URL]; ok {
			failures = append(failures, ProviderFailure{Provider: p.URL, Reason: err.Error()})
		}
	}
	return &AllProvidersFailedError{Operation: op, Attempts: attempts, Failures: failures}
}
