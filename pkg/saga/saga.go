package saga

import (
	"context"
	"errors"
	"fmt"
)

// Step is a unit of work with an optional compensating action.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed. Err is the step's own error;
// CompensationErr holds any failures from rolling back earlier steps.
type StepError struct {
	Saga            string
	Step            string
	Index           int
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed (%v), compensation also failed: %v", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Saga runs steps in order and compensates completed ones on failure.
type Saga struct {
	name  string
	steps []Step
}

// New creates a new saga with the given name.
func New(name string) *Saga {
	return &Saga{name: name}
}

// AddStep appends a step.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs all steps sequentially. When a step fails every previously
// completed step is compensated in reverse order and a *StepError is returned
// together with the failed index. On success it returns -1 and nil.
func (s *Saga) Execute(ctx context.Context) (failedStep int, err error) {
	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return i, &StepError{Saga: s.name, Step: step.Name, Index: i, Err: err, CompensationErr: s.compensate(ctx, i)}
		}
		if err := step.Execute(ctx); err != nil {
			return i, &StepError{
				Saga:            s.name,
				Step:            step.Name,
				Index:           i,
				Err:             err,
				CompensationErr: s.compensate(ctx, i),
			}
		}
	}
	return -1, nil
}

// compensate rolls back steps [0, upto) in reverse.
func (s *Saga) compensate(ctx context.Context, upto int) error {
	var errs []error
	for i := upto - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		// compensation must run even if the caller's context is done
		if err := step.Compensate(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
