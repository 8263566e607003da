package workflow

import "fmt"

// PartialWorkflowFailure reports a workflow halted by a fatal step failure.
// Completed holds the indices of steps that finished before the halt; those
// steps are not rolled back and the caller owns any compensating actions.
type PartialWorkflowFailure struct {
	WorkflowID  string
	Completed   []int
	FailedIndex int
	FailedStep  string
	Err         error
}

// Error implements the error interface.
func (e *PartialWorkflowFailure) Error() string {
	return fmt.Sprintf("workflow %s halted at step %d (%s) after %d completed step(s): %v",
		e.WorkflowID, e.FailedIndex, e.FailedStep, len(e.Completed), e.Err)
}

// Unwrap returns the underlying step error.
func (e *PartialWorkflowFailure) Unwrap() error {
	return e.Err
}
