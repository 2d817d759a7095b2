package domain

import "time"

// ApprovalType distinguishes who must decide a task.
type ApprovalType string

const (
	ApprovalTypeEVM      ApprovalType = "EVM"
	ApprovalTypeCustomer ApprovalType = "CUSTOMER"
)

// ApprovalStatus enumerates decision states.
type ApprovalStatus string

const (
	ApprovalStatusPending      ApprovalStatus = "PENDING"
	ApprovalStatusApproved     ApprovalStatus = "APPROVED"
	ApprovalStatusRejected     ApprovalStatus = "REJECTED"
	ApprovalStatusNeedMoreInfo ApprovalStatus = "NEED_MORE_INFO"
	ApprovalStatusCancelled    ApprovalStatus = "CANCELLED"
)

// ApprovalTask is one pending decision against a claim or a claim line item.
type ApprovalTask struct {
	ID          string
	ClaimID     string
	LineItemID  *string
	Type        ApprovalType
	Status      ApprovalStatus
	RequestedBy string
	ApproverID  *string
	QuotedCents *int64
	Comment     string
	CreatedAt   time.Time
	DecidedAt   *time.Time
	Version     int64
}

// IsOpen reports whether the task still awaits a decision.
func (t *ApprovalTask) IsOpen() bool {
	return t.Status == ApprovalStatusPending
}

// Clone returns a deep copy.
func (t *ApprovalTask) Clone() *ApprovalTask {
	if t == nil {
		return nil
	}
	cp := *t
	cp.LineItemID = clonePtr(t.LineItemID)
	cp.ApproverID = clonePtr(t.ApproverID)
	cp.QuotedCents = clonePtr(t.QuotedCents)
	cp.DecidedAt = clonePtr(t.DecidedAt)
	return &cp
}
