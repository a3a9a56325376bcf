package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Transient failure markers. Anything wrapping one of these is retried.
var (
	ErrRetryable = &walleterr.WalletError{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: walleterr.ExitGeneral,
	}

	ErrRateLimited = &walleterr.WalletError{
		Code:     "RATE_LIMITED",
		Message:  "rate limited",
		ExitCode: walleterr.ExitGeneral,
	}
)

// Backoff describes an exponential retry schedule with jitter.
type Backoff struct {
	Attempts int           // Total attempts, including the first
	Base     time.Duration // Delay before the first retry
	Max      time.Duration // Upper bound for a single delay
}

// DefaultBackoff returns 3 attempts waiting roughly 500ms and 1s.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Max:      2 * time.Second,
	}
}

// Do runs op until it succeeds, fails permanently or the attempts run out.
func Do[T any](ctx context.Context, b Backoff, op func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err = op(ctx)
		if err == nil || !IsRetryable(err) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	return result, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

// delay returns base*2^attempt capped at Max, jittered into [d/2, d).
func (b Backoff) delay(attempt int) time.Duration {
	d := b.Base << attempt
	if d <= 0 || (b.Max > 0 && d > b.Max) {
		d = b.Max
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half) //nolint:gosec // G404: jitter does not need crypto randomness
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ClassifyStatus maps an HTTP status to a transient marker, or nil when the
// response should be handled by the caller.
func ClassifyStatus(status int, retryAfter string) error {
	switch {
	case status == http.StatusTooManyRequests:
		if d := ParseRetryAfter(retryAfter); d > 0 {
			return fmt.Errorf("%w: retry after %s", ErrRateLimited, d)
		}
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrRetryable, status)
	default:
		return nil
	}
}

// ParseRetryAfter parses a Retry-After header given in seconds.
func ParseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
