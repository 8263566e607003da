package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okStep(name string, out any) Step {
	return Step{Name: name, Mode: Fatal, Run: func(ctx context.Context) (any, error) {
		return out, nil
	}}
}

func failStep(name string, mode FailureMode, err error) Step {
	return Step{Name: name, Mode: mode, Run: func(ctx context.Context) (any, error) {
		return nil, err
	}}
}

func TestCoordinator_AllStepsSucceed(t *testing.T) {
	c := New()

	result, err := c.Execute(context.Background(), []Step{
		okStep("store", "memory-id"),
		okStep("link", 2),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.WorkflowID)
	assert.Equal(t, []int{0, 1}, result.Completed)
	assert.Equal(t, "memory-id", result.Outputs[0])
	assert.Equal(t, 2, result.Outputs[1])
	assert.Empty(t, result.Failures)
}

func TestCoordinator_FatalFailureReportsCompletedSteps(t *testing.T) {
	c := New()
	stepErr := errors.New("graph unreachable")

	result, err := c.Execute(context.Background(), []Step{
		okStep("store", "memory-id"),
		failStep("link", Fatal, stepErr),
		okStep("never", nil),
	})
	require.Error(t, err)
	assert.Nil(t, result)

	var failure *PartialWorkflowFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []int{0}, failure.Completed)
	assert.Equal(t, 1, failure.FailedIndex)
	assert.Equal(t, "link", failure.FailedStep)
	assert.ErrorIs(t, err, stepErr)
}

func TestCoordinator_FatalFailureHaltsRemainingSteps(t *testing.T) {
	c := New()

	ran := false
	_, err := c.Execute(context.Background(), []Step{
		failStep("first", Fatal, errors.New("boom")),
		{Name: "second", Mode: Fatal, Run: func(ctx context.Context) (any, error) {
			ran = true
			return nil, nil
		}},
	})
	require.Error(t, err)

	var failure *PartialWorkflowFailure
	require.ErrorAs(t, err, &failure)
	assert.Empty(t, failure.Completed)
	assert.Equal(t, 0, failure.FailedIndex)
	assert.False(t, ran, "steps after a fatal failure must not run")
}

func TestCoordinator_ContinueModeProceedsPastFailure(t *testing.T) {
	c := New()
	stepErr := errors.New("annotation rejected")

	result, err := c.Execute(context.Background(), []Step{
		okStep("store", "memory-id"),
		failStep("annotate", Continue, stepErr),
		okStep("link", "relation"),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, result.Completed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, "annotate", result.Failures[0].Name)
	assert.ErrorIs(t, result.Failures[0].Err, stepErr)
}

func TestCoordinator_CancellationIsFatalEvenInContinueMode(t *testing.T) {
	c := New()

	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.Execute(ctx, []Step{
		okStep("store", "memory-id"),
		{Name: "annotate", Mode: Continue, Run: func(ctx context.Context) (any, error) {
			cancel()
			return nil, ctx.Err()
		}},
		okStep("never", nil),
	})
	require.Error(t, err)

	var failure *PartialWorkflowFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []int{0}, failure.Completed)
	assert.Equal(t, "annotate", failure.FailedStep)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_CancelledContextFailsNextStep(t *testing.T) {
	c := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := c.Execute(ctx, []Step{
		{Name: "store", Mode: Fatal, Run: func(ctx context.Context) (any, error) {
			ran = true
			return nil, nil
		}},
	})
	require.Error(t, err)

	var failure *PartialWorkflowFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 0, failure.FailedIndex)
	assert.Equal(t, "store", failure.FailedStep)
	assert.False(t, ran)
}

func TestCoordinator_EmptyWorkflow(t *testing.T) {
	c := New()

	result, err := c.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Completed)
	assert.Empty(t, result.Outputs)
}

func TestCoordinator_DistinctRunIDs(t *testing.T) {
	c := New()

	a, err := c.Execute(context.Background(), []Step{okStep("noop", nil)})
	require.NoError(t, err)
	b, err := c.Execute(context.Background(), []Step{okStep("noop", nil)})
	require.NoError(t, err)

	assert.NotEqual(t, a.WorkflowID, b.WorkflowID)
}
