// Package retry wraps bounded exponential backoff for network calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy bounds the attempts and the wait between them. The wait doubles
// from Initial up to Max.
type Policy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// Default is three attempts waiting 4s then 8s, capped at 20s.
var Default = Policy{Attempts: 3, Initial: 4 * time.Second, Max: 20 * time.Second}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a permanent error, runs out of
// attempts or ctx is done. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, name string, op func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		logger.Warn("retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}
