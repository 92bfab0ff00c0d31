// Package provider holds what the hosted model adapters share: error
// classification and bounded retries.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// DefaultRetryBase is the first backoff delay.
const DefaultRetryBase = 500 * time.Millisecond

var transientMarkers = []string{
	"429", "rate limit", "too many requests",
	"500", "502", "503", "504",
	"internal server error", "bad gateway", "service unavailable", "gateway timeout", "overloaded",
	"connection refused", "connection reset", "broken pipe", "unexpected eof", "i/o timeout", "no such host",
}

// Classify wraps err with kind. Rate limits, server errors and network
// failures are marked retryable; anything else (auth, bad request) is not.
// Provider SDKs only expose status codes through error text, so this
// matches on it.
func Classify(kind apperr.Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.KindRequestTimeout, op, err)
	}
	if _, ok := apperr.KindOf(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return apperr.New(kind, op, err)
	}
	lower := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return apperr.Transient(kind, op, err)
		}
	}
	return apperr.New(kind, op, err)
}

// Retry runs fn until it succeeds, returns a non-retryable error, or
// attempts extra tries are used up.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 0 {
		attempts = 0
	}
	if base <= 0 {
		base = DefaultRetryBase
	}
	backoff := retry.NewExponential(base)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts), backoff)

	try := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		try++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if apperr.IsRetryable(err) {
			if try <= attempts {
				logger.FromContext(ctx).Warn("Retrying provider call", "attempt", try, "error", err)
			}
			return retry.RetryableError(err)
		}
		return err
	})
}
