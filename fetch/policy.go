package fetch

import (
	"math/rand"
	"time"
)

// RetryPolicy drives the orchestrator's iterative retry loop. It replaces
// ad hoc counters with one injectable, testable object.
type RetryPolicy struct {
	// MaxRetries is the retry budget per provider. The operation makes at
	// most MaxRetries × len(providers) attempts.
	MaxRetries int

	// InitialBackoff and MaxBackoff bound the exponential delay between
	// provider rotations.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// DepthReductionFactor shrinks the search window after a rate-limit
	// error; the window is only ever reduced, never grown back.
	DepthReductionFactor float64

	// MaxDepthReductions caps how often one operation may shrink its
	// window before a rate-limited provider counts as failed.
	MaxDepthReductions int

	// Jitter perturbs a computed backoff. Nil selects the default
	// ±25% spread; tests inject an identity function.
	Jitter func(time.Duration) time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           3,
		InitialBackoff:       500 * time.Millisecond,
		MaxBackoff:           8 * time.Second,
		DepthReductionFactor: 0.5,
		MaxDepthReductions:   4,
	}
}

// Backoff computes the delay before the given attempt (1-based): exponential
// growth capped at MaxBackoff, then jittered.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter != nil {
		return p.Jitter(d)
	}
	return defaultJitter(d)
}

func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 4
	return d - time.Duration(spread/2) + time.Duration(rand.Int63n(spread+1))
}

// Window is a requested search depth in hours plus how often it has been
// reduced already.
type Window struct {
	Hours      float64 `json:"hours"`
	Reductions int     `json:"reductions"`
}

// Reduce shrinks the window by the policy factor.
func (w Window) Reduce(factor float64) Window {
	return Window{Hours: w.Hours * factor, Reductions: w.Reductions + 1}
}
