// Package retryutil provides exponential backoff with jitter, used by the
// resource hot-reload watcher to survive transient filesystem-watch errors
// without the caller hand-rolling a backoff loop at each call site.
package retryutil

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
)

// Config holds backoff parameters for Do.
type Config struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterFraction float64
}

// DefaultConfig mirrors the teacher's default retry policy.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		BackoffFactor:  2.0,
		JitterFraction: 0.1,
	}
}

// Do executes fn, retrying on error up to cfg.MaxRetries times with
// exponential backoff and jitter. A nil cfg uses DefaultConfig. The
// operation name is used only for log context.
func Do(ctx context.Context, cfg *Config, operation string, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt+1, err)
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Log.WithField("operation", operation).WithField("attempt", attempt+1).
					Info("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			logging.Log.WithField("operation", operation).WithField("attempts", attempt+1).
				WithError(err).Error("max retries exceeded")
			return fmt.Errorf("operation %s failed after %d attempts: %w", operation, attempt+1, err)
		}

		if attempt > 0 {
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		wait := withJitter(delay, cfg.JitterFraction)

		logging.Log.WithField("operation", operation).WithField("attempt", attempt+1).
			WithField("delay", wait).WithError(err).Info("retrying after delay")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
		}
	}

	return lastErr
}

func withJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	if fraction > 1 {
		fraction = 1
	}
	jitter := time.Duration(rand.Float64() * float64(d) * fraction)
	return d + jitter
}

// IsTerminal reports whether err represents a non-retryable context
// cancellation, so callers can distinguish "give up" from "transient".
func IsTerminal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
