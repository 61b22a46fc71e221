package reconciler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/settle"
	"github.com/jakechorley/study-scheduler/pkg/metrics"
)

// Strategy names
const (
	StrategyClearVolunteer     = "clear-volunteer"
	StrategyResetSubjectNumber = "reset-subject-number"
	StrategyCancelThenDelete   = "cancel-then-delete"
	StrategyDirectDelete       = "direct-delete"
)

// Strategy is one way of removing an association row
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context) error
}

// chainResult records what a strategy chain did
type chainResult struct {
	Attempted []string
	Accepted  string
}

// errChainExhausted is returned when no strategy could be verified
var errChainExhausted = errors.New("all strategies exhausted without verified removal")

// runStrategies tries each strategy in order. The first one to complete
// without error is verified independently; if verification fails the next
// strategy is tried. Attempt errors are collected, not returned early.
func (r *Reconciler) runStrategies(ctx context.Context, operation string, strategies []Strategy, verify settle.CheckFunc) (chainResult, error) {
	var result chainResult
	var errs []error

	for _, s := range strategies {
		result.Attempted = append(result.Attempted, s.Name)
		r.logger.Debug("Attempting association strategy",
			zap.String("operation", operation),
			zap.String("strategy", s.Name))

		if err := s.Attempt(ctx); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			r.metrics.StrategyAttempt(operation, s.Name, metrics.OutcomeError)
			r.logger.Debug("Association strategy failed",
				zap.String("operation", operation),
				zap.String("strategy", s.Name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}

		ok, err := r.poller.Until(ctx, verify)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s verification: %w", s.Name, err))
			r.metrics.StrategyAttempt(operation, s.Name, metrics.OutcomeError)
			continue
		}
		if !ok {
			r.metrics.StrategyAttempt(operation, s.Name, metrics.OutcomeUnverified)
			r.logger.Debug("Association strategy completed but row persists",
				zap.String("operation", operation),
				zap.String("strategy", s.Name))
			errs = append(errs, fmt.Errorf("%s: row still present after verification", s.Name))
			continue
		}

		r.metrics.StrategyAttempt(operation, s.Name, metrics.OutcomeVerified)
		result.Accepted = s.Name
		return result, nil
	}

	errs = append([]error{errChainExhausted}, errs...)
	return result, errors.Join(errs...)
}
