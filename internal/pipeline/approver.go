package pipeline

import (
	"github.com/chatretro/issueflow/internal/types"
)

// Approver is the human gate. No timeout is imposed on either decision;
// rejection is a normal negative outcome, not an error.
type Approver interface {
	// ApprovePriorities reviews the ranked outcome of a prioritization run
	// before it is committed.
	ApprovePriorities(issues []*types.Issue, clusters []*types.IssueCluster) (bool, error)

	// ApprovePlan reviews a fix plan the resolution agent declined to apply
	// on its own.
	ApprovePlan(cluster *types.IssueCluster, plan string) (bool, error)
}

// Auto approves every gate. Used by --yes runs and by the fast-track path,
// where approval is implicit in the severity.
type Auto struct{}

// ApprovePriorities always approves.
func (Auto) ApprovePriorities([]*types.Issue, []*types.IssueCluster) (bool, error) {
	return true, nil
}

// ApprovePlan always approves.
func (Auto) ApprovePlan(*types.IssueCluster, string) (bool, error) {
	return true, nil
}
