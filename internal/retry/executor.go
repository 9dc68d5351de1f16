package retry

import (
	"context"
	"time"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Executor orchestrates retry attempts with backoff and error classification.
// Safe for concurrent use; WithOnRetry returns a new instance.
type Executor struct {
	classifier spreg.ErrorClassifier
	strategy   spreg.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor creates a retry executor. Panics if classifier or strategy is nil.
func NewExecutor(classifier spreg.ErrorClassifier, strategy spreg.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{classifier: classifier, strategy: strategy}
}

// Default returns an executor using the package defaults for attempts and delays.
func Default(classifier spreg.ErrorClassifier) *Executor {
	return NewExecutor(classifier, NewExponentialBackoff(spreg.DefaultRetryMaxAttempts,
		WithInitialDelay(spreg.DefaultRetryInitialDelay),
		WithMaxDelay(spreg.DefaultRetryMaxDelay),
	))
}

// WithOnRetry returns a copy of e that calls callback before each retry.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs operation until it succeeds, fails fatally, or retries are exhausted.
// The last error is returned.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	err := operation(ctx)
	for attempt := 0; err != nil && e.classifier.IsTransient(err) && attempt < e.strategy.MaxAttempts(); attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := e.strategy.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = operation(ctx)
	}
	return err
}
