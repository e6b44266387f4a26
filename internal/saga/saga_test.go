package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSaga_AllStepsRunInOrder(t *testing.T) {
	var order []string
	s := New("test", zap.NewNop())
	for _, name := range []string{"one", "two", "three"} {
		name := name
		s.AddStep(Step{
			Name: name,
			Action: func(ctx context.Context) error {
				order = append(order, name)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				t.Fatal("compensation must not run on success")
				return nil
			},
		})
	}

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"one", "two", "three"}, order)
}

func TestSaga_FailureCompensatesCompletedStepsInReverse(t *testing.T) {
	var compensated []string
	boom := errors.New("step two exploded")

	s := New("test", zap.NewNop())
	s.AddStep(Step{
		Name:   "create_identity",
		Action: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			compensated = append(compensated, "create_identity")
			return nil
		},
	})
	s.AddStep(Step{
		Name:   "create_practice",
		Action: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			compensated = append(compensated, "create_practice")
			return nil
		},
	})
	s.AddStep(Step{
		Name:   "create_membership",
		Action: func(ctx context.Context) error { return boom },
		Compensate: func(ctx context.Context) error {
			t.Fatal("the failing step must not be compensated")
			return nil
		},
	})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "create_membership")

	// Reverse order: practice first, then identity.
	assert.Equal(t, []string{"create_practice", "create_identity"}, compensated)
}

func TestSaga_CompensationFailureKeepsOriginalError(t *testing.T) {
	boom := errors.New("original failure")
	cleanupErr := errors.New("cleanup also failed")

	s := New("test", zap.NewNop())
	s.AddStep(Step{
		Name:   "first",
		Action: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			return cleanupErr
		},
	})
	s.AddStep(Step{
		Name:   "second",
		Action: func(ctx context.Context) error { return boom },
	})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, cleanupErr)
}

func TestSaga_CompensationSurvivesCancelledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	compensated := false
	s := New("test", zap.NewNop())
	s.AddStep(Step{
		Name:   "first",
		Action: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			// The compensation context is detached from the request.
			require.NoError(t, ctx.Err())
			compensated = true
			return nil
		},
	})
	s.AddStep(Step{
		Name: "second",
		Action: func(ctx context.Context) error {
			cancel() // caller disconnects mid-saga
			return errors.New("failed after caller left")
		},
	})

	err := s.Execute(ctx)
	require.Error(t, err)
	assert.True(t, compensated, "compensation must run to completion after cancellation")
}

func TestSaga_NilCompensationSkipped(t *testing.T) {
	s := New("test", zap.NewNop())
	s.AddStep(Step{
		Name:   "no_cleanup_needed",
		Action: func(ctx context.Context) error { return nil },
	})
	s.AddStep(Step{
		Name:   "fails",
		Action: func(ctx context.Context) error { return errors.New("nope") },
	})

	assert.Error(t, s.Execute(context.Background()))
}

func TestSaga_EmptySagaSucceeds(t *testing.T) {
	assert.NoError(t, New("empty", zap.NewNop()).Execute(context.Background()))
}
