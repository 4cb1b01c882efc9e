package agent

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/byewind1/gdl-agent/internal/generator"
)

// Model providers fail in two distinct ways: transient request errors worth
// retrying with backoff, and a provider that is down, where hammering it only
// delays the abort. Backoff handles the first, a per-provider circuit breaker
// the second.

// RetryConfig bounds the exponential backoff around one generation call.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration // total retry budget for one logical call
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig spaces retries for interactive use: the first pause is
// short enough not to feel stuck, and the sequence gives up after two minutes
// so a dead provider surfaces within one attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         15 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

const (
	breakerTrip     = 5                // consecutive failures before the circuit opens
	breakerTimeout  = 30 * time.Second // how long an open circuit stays open
	breakerHalfOpen = 3                // trial requests allowed while half-open
)

// CircuitBreakerRegistry hands out one breaker per provider type, so an
// Anthropic outage does not poison a local lmstudio run in the same process.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for a provider type, creating it on first use.
func (r *CircuitBreakerRegistry) Get(providerType string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[providerType]
	if !ok {
		cb = newProviderBreaker(providerType)
		r.breakers[providerType] = cb
	}
	return cb
}

func newProviderBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerHalfOpen,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("provider %q circuit: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the user's doing, not the provider's.
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
	})
}

// generateWithRetry runs one generation request through the breaker under
// exponential backoff. An open circuit and a cancelled context come back as
// permanent errors; the session loop decides whether to abort on them.
func generateWithRetry(ctx context.Context, g generator.Generator, req generator.Request, cb *gobreaker.CircuitBreaker, cfg RetryConfig) (generator.Response, error) {
	var resp generator.Response

	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := cb.Execute(func() (interface{}, error) {
			return g.Generate(ctx, req)
		})
		switch {
		case err == nil:
			resp = out.(generator.Response)
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = cfg.MaxElapsedTime
	policy.Multiplier = cfg.Multiplier
	policy.RandomizationFactor = cfg.RandomizationFactor

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	return resp, err
}
