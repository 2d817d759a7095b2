package domain

// claimTransitions is the allowed forward graph. Cancellation reject/reopen
// restore a snapshotted status and are checked separately.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusDraft:     {ClaimStatusOpen},
	ClaimStatusOpen:      {ClaimStatusDiagnosed, ClaimStatusCancelRequested},
	ClaimStatusDiagnosed: {ClaimStatusDiagnosed, ClaimStatusPendingEVMApproval, ClaimStatusPendingCustomerApproval, ClaimStatusCancelRequested},
	ClaimStatusPendingEVMApproval: {
		ClaimStatusEVMApproved, ClaimStatusEVMRejected, ClaimStatusReturnedForInfo, ClaimStatusCancelRequested,
	},
	ClaimStatusEVMApproved:     {ClaimStatusInRepair, ClaimStatusCancelRequested},
	ClaimStatusEVMRejected:     {ClaimStatusPendingEVMApproval, ClaimStatusClosed, ClaimStatusCancelRequested},
	ClaimStatusReturnedForInfo: {ClaimStatusPendingEVMApproval, ClaimStatusCancelRequested},
	ClaimStatusInRepair:        {ClaimStatusProblemReported, ClaimStatusWorkDone, ClaimStatusCancelRequested},
	ClaimStatusProblemReported: {ClaimStatusProblemSolved, ClaimStatusCancelRequested},
	ClaimStatusProblemSolved: {
		ClaimStatusInRepair, ClaimStatusResolutionConfirmed, ClaimStatusProblemReported, ClaimStatusCancelRequested,
	},
	ClaimStatusResolutionConfirmed: {ClaimStatusProblemReported, ClaimStatusWorkDone, ClaimStatusCancelRequested},
	ClaimStatusWorkDone:            {ClaimStatusFinalInspection, ClaimStatusInRepair, ClaimStatusClaimDone, ClaimStatusCancelRequested},
	ClaimStatusFinalInspection:     {ClaimStatusReadyForHandover, ClaimStatusCancelRequested},
	ClaimStatusReadyForHandover:    {ClaimStatusClaimDone, ClaimStatusOpen, ClaimStatusCancelRequested},
	ClaimStatusClaimDone:           {ClaimStatusClosed},
	ClaimStatusClosed:              {},
	ClaimStatusCancelRequested:     {ClaimStatusCancelAccepted},
	ClaimStatusCancelAccepted:      {ClaimStatusCancelled},
	ClaimStatusCancelled:           {},
	ClaimStatusPendingCustomerApproval: {
		ClaimStatusSCRepair, ClaimStatusReadyForHandover, ClaimStatusCancelRequested,
	},
	ClaimStatusSCRepair: {ClaimStatusWorkDone, ClaimStatusCancelRequested},
}

// AllowedNext returns the statuses reachable from s in one step.
func AllowedNext(s ClaimStatus) []ClaimStatus {
	next := claimTransitions[s]
	out := make([]ClaimStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the workflow graph.
func CanTransition(from, to ClaimStatus) bool {
	for _, candidate := range claimTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further workflow commands apply.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusClosed || s == ClaimStatusCancelled
}

// IsCancelling reports whether a cancellation is in flight.
func (s ClaimStatus) IsCancelling() bool {
	return s == ClaimStatusCancelRequested || s == ClaimStatusCancelAccepted
}

// IsRejectedOrReturned reports whether the claim awaits resubmission.
func (s ClaimStatus) IsRejectedOrReturned() bool {
	return s == ClaimStatusEVMRejected || s == ClaimStatusReturnedForInfo
}
