package reasoning

import "fmt"

// InvalidBranchOriginError is returned when a submission tries to register a
// branch whose fork point does not exist in the parent branch's lineage.
type InvalidBranchOriginError struct {
	BranchID string `json:"branch_id"`
	Origin   int    `json:"origin"`
}

func (e *InvalidBranchOriginError) Error() string {
	return fmt.Sprintf("branch %q: origin thought %d does not exist in the parent branch", e.BranchID, e.Origin)
}

// InvalidRevisionTargetError is returned when a submission revises a
// sequence number that is not visible in the resolved branch's lineage.
type InvalidRevisionTargetError struct {
	BranchID string `json:"branch_id"`
	Target   int    `json:"target"`
}

func (e *InvalidRevisionTargetError) Error() string {
	branch := e.BranchID
	if branch == "" {
		branch = "trunk"
	}
	return fmt.Sprintf("revision target %d does not exist in branch %q lineage", e.Target, branch)
}
