package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
)

// Put backoff: 200ms doubling, capped at 2s per wait and 10s overall.
var (
	putInitialInterval = 200 * time.Millisecond
	putMaxInterval     = 2 * time.Second
	putMaxElapsed      = 10 * time.Second
)

// withPutRetry runs op up to retries+1 times. Errors wrapped in
// backoff.Permanent stop immediately. Exhaustion becomes StorageUnavailable.
func withPutRetry(ctx context.Context, retries int, log *zap.Logger, key string, op func() error) error {
	if retries < 0 {
		retries = 0
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = putInitialInterval
	eb.MaxInterval = putMaxInterval
	eb.MaxElapsedTime = putMaxElapsed

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
	err := backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, policy, func(err error, wait time.Duration) {
		log.Warn("storage put failed, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.KindValidation {
		return err
	}
	return apperr.FromContext(ctx, apperr.KindStorageUnavailable, "storage.Put", err)
}
