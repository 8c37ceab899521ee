package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/payorders/pkg/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestSaga_AllStepsSucceed(t *testing.T) {
	var executed []string

	s := saga.New("refund").
		AddStep(saga.Step{
			Name:    "record",
			Execute: func(ctx context.Context) error { executed = append(executed, "record"); return nil },
		}).
		AddStep(saga.Step{
			Name:    "gateway",
			Execute: func(ctx context.Context) error { executed = append(executed, "gateway"); return nil },
		})

	failedStep, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, failedStep)
	assert.Equal(t, []string{"record", "gateway"}, executed)
}

func TestSaga_StepFails_CompensatesPriorOnly(t *testing.T) {
	var executed []string
	gatewayErr := errors.New("gateway declined")

	s := saga.New("refund").
		AddStep(saga.Step{
			Name:       "record",
			Execute:    func(ctx context.Context) error { executed = append(executed, "record"); return nil },
			Compensate: func(ctx context.Context) error { executed = append(executed, "undo-record"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "gateway",
			Execute:    func(ctx context.Context) error { return gatewayErr },
			Compensate: func(ctx context.Context) error { executed = append(executed, "undo-gateway"); return nil },
		}).
		AddStep(saga.Step{
			Name:    "notify",
			Execute: func(ctx context.Context) error { executed = append(executed, "notify"); return nil },
		})

	failedStep, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, failedStep)
	assert.ErrorIs(t, err, gatewayErr)
	assert.Equal(t, []string{"record", "undo-record"}, executed)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "gateway", stepErr.Step)
	assert.Equal(t, 1, stepErr.Index)
	assert.NoError(t, stepErr.CompensationErr)
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	var compensated []string

	s := saga.New("test").
		AddStep(saga.Step{Name: "a", Execute: noop, Compensate: func(ctx context.Context) error { compensated = append(compensated, "a"); return nil }}).
		AddStep(saga.Step{Name: "b", Execute: noop, Compensate: func(ctx context.Context) error { compensated = append(compensated, "b"); return nil }}).
		AddStep(saga.Step{Name: "c", Execute: func(ctx context.Context) error { return errors.New("c failed") }})

	failedStep, err := s.Execute(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, failedStep)
	assert.Equal(t, []string{"b", "a"}, compensated)
}

func TestSaga_NoSteps(t *testing.T) {
	failedStep, err := saga.New("empty").Execute(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, -1, failedStep)
}

func TestSaga_CompensationErrorsCollected(t *testing.T) {
	s := saga.New("test").
		AddStep(saga.Step{Name: "a", Execute: noop, Compensate: func(ctx context.Context) error { return errors.New("undo a failed") }}).
		AddStep(saga.Step{Name: "b", Execute: noop, Compensate: func(ctx context.Context) error { return errors.New("undo b failed") }}).
		AddStep(saga.Step{Name: "c", Execute: func(ctx context.Context) error { return errors.New("c failed") }})

	_, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undo a failed")
	assert.Contains(t, err.Error(), "undo b failed")
	assert.Contains(t, err.Error(), "compensation also failed")
}

func TestSaga_NilCompensate(t *testing.T) {
	s := saga.New("test").
		AddStep(saga.Step{Name: "a", Execute: noop}).
		AddStep(saga.Step{Name: "b", Execute: func(ctx context.Context) error { return errors.New("fail") }})

	failedStep, err := s.Execute(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, failedStep)
}

func TestSaga_CancelledContext_StopsBeforeNextStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensated bool

	s := saga.New("test").
		AddStep(saga.Step{
			Name:       "a",
			Execute:    func(context.Context) error { cancel(); return nil },
			Compensate: func(ctx context.Context) error { compensated = true; return ctx.Err() },
		}).
		AddStep(saga.Step{Name: "b", Execute: func(context.Context) error { t.Fatal("b must not run"); return nil }})

	failedStep, err := s.Execute(ctx)
	assert.Equal(t, 1, failedStep)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, compensated)
}
