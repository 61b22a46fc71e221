package reconciler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

const maxRetryDelay = 2 * time.Second

// retryPolicy retries association store calls that failed at transport level
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

// withRetry runs fn with capped exponential backoff. Only errors wrapping
// model.ErrStoreUnavailable are retried.
func (r *Reconciler) withRetry(ctx context.Context, call string, fn func() error) error {
	attempts := r.retry.attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := r.retry.baseDelay
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil || !errors.Is(err, model.ErrStoreUnavailable) {
			return err
		}

		// Do not sleep after last attempt
		if i == attempts-1 {
			break
		}

		r.metrics.StoreRetry(call)
		r.logger.Debug("Retrying association store call",
			zap.String("call", call),
			zap.Int("attempt", i+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return err
}
