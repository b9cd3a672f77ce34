// Package retryx is the single bounded retry-with-backoff helper used for
// local store initialization and every remote call made during sync.
package retryx

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes how many times to try and how long to wait in between.
//
// With Linear set the n-th wait is n*BaseDelay, otherwise it doubles
// starting from BaseDelay. MaxDelay caps a single wait when non-zero.
type Policy struct {
	Attempts  uint64
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Linear    bool
}

// DefaultStorePolicy is used while (re)opening the local store.
var DefaultStorePolicy = Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond, Linear: true}

// DefaultRemotePolicy is used for remote gateway calls.
var DefaultRemotePolicy = Policy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

// Always treats every error as retryable.
func Always(error) bool { return true }

// Do runs fn until it succeeds, returns an error rejected by retryable,
// or the attempts are exhausted. The last error from fn is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if retryable == nil {
		retryable = Always
	}
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Value is Do for functions returning a result.
func Value[T any](ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, retryable, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (p Policy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}

	var b retry.Backoff
	if p.Linear {
		var n int64
		b = retry.BackoffFunc(func() (time.Duration, bool) {
			n++
			return time.Duration(n) * base, false
		})
	} else {
		b = retry.NewExponential(base)
	}

	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}

	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.WithMaxRetries(attempts-1, b)
}
