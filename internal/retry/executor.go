package retry

import (
	"context"
	"time"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// Executor runs an operation until it succeeds, fails fatally, or runs out
// of attempts. It is safe for concurrent use.
type Executor struct {
	classifier rgpipe.ErrorClassifier
	strategy   rgpipe.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor panics if classifier or strategy is nil.
func NewExecutor(classifier rgpipe.ErrorClassifier, strategy rgpipe.BackoffStrategy) *Executor {
	if classifier == nil || strategy == nil {
		panic("retry: classifier and strategy are required")
	}
	return &Executor{classifier: classifier, strategy: strategy}
}

// WithOnRetry returns a copy of e that calls fn before each wait.
func (e *Executor) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = fn
	return &clone
}

// Execute returns nil on success, otherwise the last error seen or the
// context error if ctx ended while waiting.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	limit := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err) && (limit < 0 || attempt < limit); attempt++ {
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

		err = op(ctx)
	}
	return err
}
