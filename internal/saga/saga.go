// Package saga runs multi-step operations that span independent stores and
// therefore cannot share a transaction. Each step pairs an action with a
// compensation; a failure at step N triggers the compensations of steps
// N-1..1 in reverse order. The caller always sees the original failure, not
// a compensation failure.
package saga

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dentline/frontdesk/prometheus"
)

// Step is one unit of a saga. Compensate may be nil for steps with nothing
// to undo.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga is an ordered list of steps executed sequentially.
type Saga struct {
	name  string
	steps []Step
	log   *zap.Logger
}

// New returns an empty saga.
func New(name string, log *zap.Logger) *Saga {
	return &Saga{name: name, log: log}
}

// AddStep appends a step. Steps run in the order they were added.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the steps in order. On the first failure it compensates all
// previously completed steps in reverse and returns the failing step's error.
//
// Compensation runs on a detached context: partial orphaned state is worse
// than a slightly-late cleanup, so an expired or cancelled request context
// must not abort it.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			s.log.Error("saga step failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err))
			s.compensate(i - 1)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return nil
}

// compensate undoes steps last..0, best effort. Failures are logged and
// counted but never surfaced to the caller.
func (s *Saga) compensate(last int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for i := last; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			failed = true
			s.log.Error("saga compensation failed; manual cleanup required",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err))
			continue
		}
		s.log.Info("saga step compensated",
			zap.String("saga", s.name),
			zap.String("step", step.Name))
	}

	if failed {
		prometheus.RecordSagaCompensation(s.name, "compensation_failed")
	} else {
		prometheus.RecordSagaCompensation(s.name, "compensated")
	}
}
