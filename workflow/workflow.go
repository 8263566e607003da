// Package workflow composes dispatch and store calls into one logical
// multi-step operation with explicit partial-failure semantics. There is no
// distributed transaction across heterogeneous capability servers:
// completed steps are never undone automatically. A fatal failure halts the
// workflow and reports exactly what completed so the caller can run
// compensating actions.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/toolmesh/logging"
)

// FailureMode declares what a step's failure does to the workflow.
type FailureMode int

const (
	// Fatal failures halt the workflow and surface a PartialWorkflowFailure.
	Fatal FailureMode = iota
	// Continue failures are recorded and logged; the workflow proceeds.
	Continue
)

// String returns the string representation of the failure mode.
func (m FailureMode) String() string {
	if m == Continue {
		return "continue"
	}
	return "fatal"
}

// Step is one unit of a workflow.
type Step struct {
	// Name identifies the step in results and diagnostics.
	Name string

	// Mode declares whether a failure is fatal to the workflow.
	Mode FailureMode

	// Run executes the step. The output is retained in the workflow result.
	Run func(ctx context.Context) (any, error)
}

// StepFailure records a non-fatal step failure.
type StepFailure struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Err   error  `json:"-"`
}

// Result is the outcome of a workflow whose fatal steps all succeeded.
type Result struct {
	// WorkflowID identifies this run in logs.
	WorkflowID string `json:"workflow_id"`

	// Completed lists the indices of successfully completed steps.
	Completed []int `json:"completed"`

	// Outputs maps completed step index to the step's output.
	Outputs map[int]any `json:"outputs"`

	// Failures lists continue-mode steps that failed.
	Failures []StepFailure `json:"failures,omitempty"`
}

// Coordinator executes workflows sequentially, step by step.
type Coordinator struct {
	logger logging.Logger
}

// Options configures a Coordinator.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs a workflow Coordinator.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Coordinator{logger: opts.Logger}
}

// WithLogger sets the coordinator logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Execute runs the steps in order. A cancelled context counts as a fatal
// failure of the step it interrupted, regardless of the step's declared
// mode. On fatal failure the returned error is a *PartialWorkflowFailure
// enumerating the completed step indices; completed steps are not rolled
// back.
func (c *Coordinator) Execute(ctx context.Context, steps []Step) (*Result, error) {
	result := &Result{
		WorkflowID: uuid.NewString(),
		Outputs:    make(map[int]any),
	}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, c.fatal(result, i, step, err)
		}

		start := time.Now()
		out, err := step.Run(ctx)
		c.logStep(result.WorkflowID, step.Name, i, time.Since(start), err)

		if err != nil {
			if step.Mode == Fatal || isCancellation(err) {
				return nil, c.fatal(result, i, step, err)
			}
			result.Failures = append(result.Failures, StepFailure{Index: i, Name: step.Name, Err: err})
			continue
		}

		result.Completed = append(result.Completed, i)
		result.Outputs[i] = out
	}

	return result, nil
}

func (c *Coordinator) fatal(result *Result, index int, step Step, err error) *PartialWorkflowFailure {
	c.logger.Error("workflow halted",
		"workflow_id", result.WorkflowID, "failed_step", step.Name,
		"failed_index", index, "completed", len(result.Completed), "error", err.Error())
	return &PartialWorkflowFailure{
		WorkflowID:  result.WorkflowID,
		Completed:   append([]int(nil), result.Completed...),
		FailedIndex: index,
		FailedStep:  step.Name,
		Err:         err,
	}
}

func (c *Coordinator) logStep(workflowID, name string, index int, dur time.Duration, err error) {
	if ml, ok := c.logger.(*logging.MeshLogger); ok {
		ml.LogWorkflowStep(workflowID, name, index, dur, err)
		return
	}
	if err != nil {
		c.logger.Warn("workflow step failed", "workflow_id", workflowID, "step", name, "index", index, "error", err.Error())
		return
	}
	c.logger.Debug("workflow step completed", "workflow_id", workflowID, "step", name, "index", index)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
