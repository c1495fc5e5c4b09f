package leave

import "github.com/warp/shift-engine/schedule"

// Decision is a reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool { return d == DecisionApprove || d == DecisionReject }

// Target returns the status a decision leads to.
func (d Decision) Target() schedule.LeaveStatus {
	if d == DecisionApprove {
		return schedule.LeaveApproved
	}
	return schedule.LeaveRejected
}

// Transition applies d to a request in status from.
//
//	pending  --approve--> approved
//	pending  --reject---> rejected
//
// approved and rejected are terminal.
func Transition(id schedule.LeaveID, from schedule.LeaveStatus, d Decision) (schedule.LeaveStatus, error) {
	to := d.Target()
	if from != schedule.LeavePending {
		return from, &TransitionError{ID: id, From: from, To: to}
	}
	return to, nil
}
