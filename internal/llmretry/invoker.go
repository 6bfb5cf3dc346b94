// Package llmretry wraps generation calls with bounded exponential backoff
// and transient/fatal failure classification.
package llmretry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// WarnThresholdUnits is the estimated-token payload size above which a
// warning is logged before invoking. Oversized calls still proceed.
const WarnThresholdUnits = 8000

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// transientMarkers are the lowercase substrings that classify a provider
// error as retryable: overload, rate limiting, timeouts, connection drops,
// and token-limit responses.
var transientMarkers = []string{
	"overloaded",
	"529",
	"rate limit",
	"timeout",
	"connection",
	"token",
}

// Transient reports whether err is classified as retryable.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ExhaustedError is returned when every attempt failed with a transient
// error. Last carries the final underlying error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// FatalError is returned when an attempt fails with a non-retryable error.
// No further attempts are made.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("non-retryable provider failure: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy returns the standard policy: 3 attempts, 2s base delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	return p
}

// Invoker runs generation actions under a retry policy. It is the only
// component that sleeps; all sleeps are attempt-scoped backoff.
type Invoker struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// New creates an Invoker with the given policy.
func New(policy Policy) *Invoker {
	return &Invoker{
		policy: policy.normalized(),
		sleep:  sleepContext,
		logger: slog.Default(),
	}
}

// Invoke runs action until it succeeds, the attempt budget is exhausted, or
// a non-retryable error occurs. payloadUnits is the caller's estimate of
// the outbound payload size; values above WarnThresholdUnits are logged but
// never block the call. The backoff schedule is BaseDelay, 2*BaseDelay,
// 4*BaseDelay, ... with no jitter.
func (inv *Invoker) Invoke(ctx context.Context, payloadUnits int, action func(ctx context.Context) (string, error)) (string, error) {
	if payloadUnits > WarnThresholdUnits {
		inv.logger.Warn("large generation payload", "estimated_units", payloadUnits, "threshold", WarnThresholdUnits)
	}

	backoff := retry.WithMaxRetries(uint64(inv.policy.MaxAttempts-1), retry.NewExponential(inv.policy.BaseDelay))

	for attempt := 1; ; attempt++ {
		out, err := action(ctx)
		if err == nil {
			return out, nil
		}

		if !Transient(err) {
			return "", &FatalError{Err: err}
		}

		delay, stop := backoff.Next()
		if stop {
			return "", &ExhaustedError{Attempts: inv.policy.MaxAttempts, Last: err}
		}

		inv.logger.Warn("transient provider failure, retrying",
			"attempt", attempt,
			"max_attempts", inv.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		if serr := inv.sleep(ctx, delay); serr != nil {
			return "", serr
		}
	}
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
