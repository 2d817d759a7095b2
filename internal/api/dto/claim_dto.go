package dto

import (
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// ClaimRequest payload for drafts and intake.
type ClaimRequest struct {
	DraftID            string            `json:"draft_id"`
	CustomerID         string            `json:"customer_id"`
	VehicleID          string            `json:"vehicle_id"`
	FailureDescription string            `json:"failure_description"`
	RepairPath         domain.RepairPath `json:"repair_path"`
	Attachments        []string          `json:"attachments"`
	Version            int64             `json:"version"`
}

// DiagnosticRequest payload.
type DiagnosticRequest struct {
	Findings                 string             `json:"findings"`
	Component                string             `json:"component"`
	LaborHours               float64            `json:"labor_hours"`
	Parts                    []ClaimPartPayload `json:"parts"`
	Attachments              []string           `json:"attachments"`
	WarrantyCostCents        *int64             `json:"warranty_cost_cents"`
	ServiceCostCents         *int64             `json:"service_cost_cents"`
	ThirdPartyPartsCostCents *int64             `json:"third_party_parts_cost_cents"`
	Evaluate                 bool               `json:"evaluate"`
	AsOf                     *time.Time         `json:"as_of"`
	Version                  int64              `json:"version"`
}

// ClaimPartPayload is a parts line item.
type ClaimPartPayload struct {
	LineItemID    string `json:"line_item_id"`
	PartID        string `json:"part_id"`
	Quantity      int    `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	ThirdParty    bool   `json:"third_party"`
}

// CommentRequest is the body of commands that only carry a note.
type CommentRequest struct {
	Comment string `json:"comment"`
	Version int64  `json:"version"`
}

// AssignRequest payload.
type AssignRequest struct {
	TechnicianID string `json:"technician_id"`
	Version      int64  `json:"version"`
}

// ApproveRequest payload.
type ApproveRequest struct {
	Notes                string               `json:"notes"`
	CompanyPaidCostCents *int64               `json:"company_paid_cost_cents"`
	Reservations         []ReservationPayload `json:"reservations"`
	ReserveClaimParts    bool                 `json:"reserve_claim_parts"`
	Version              int64                `json:"version"`
}

// ReservationPayload asks for serials of one part.
type ReservationPayload struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
}

// RejectRequest payload.
type RejectRequest struct {
	Reason  string `json:"reason"`
	Notes   string `json:"notes"`
	Version int64  `json:"version"`
}

// ConfirmResolutionRequest payload.
type ConfirmResolutionRequest struct {
	Confirmed      bool   `json:"confirmed"`
	NextAction     string `json:"next_action"`
	NewDescription string `json:"new_description"`
	Version        int64  `json:"version"`
}

// InspectionRequest payload.
type InspectionRequest struct {
	Passed  bool   `json:"passed"`
	Notes   string `json:"notes"`
	Version int64  `json:"version"`
}

// HandoverRequest payload.
type HandoverRequest struct {
	Satisfied bool   `json:"satisfied"`
	Issue     string `json:"issue"`
	Version   int64  `json:"version"`
}

// QuoteRequest payload.
type QuoteRequest struct {
	QuotedCents int64   `json:"quoted_cents"`
	LineItemID  *string `json:"line_item_id"`
	Comment     string  `json:"comment"`
	Version     int64   `json:"version"`
}

// CustomerApprovalRequest payload.
type CustomerApprovalRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
	Version  int64  `json:"version"`
}

// PaymentRequest payload.
type PaymentRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Version       int64                `json:"version"`
}

// OverrideRequest payload.
type OverrideRequest struct {
	Covered    bool   `json:"covered"`
	Assessment string `json:"assessment"`
	Version    int64  `json:"version"`
}

// ClaimResponse is the public view of a claim.
type ClaimResponse struct {
	ID                 string                     `json:"id"`
	ClaimNumber        string                     `json:"claim_number"`
	VehicleID          string                     `json:"vehicle_id"`
	CustomerID         string                     `json:"customer_id"`
	Status             domain.ClaimStatus         `json:"status"`
	RepairPath         domain.RepairPath          `json:"repair_path"`
	FailureDescription string                     `json:"failure_description"`
	CreatedBy          string                     `json:"created_by"`
	TechnicianID       *string                    `json:"technician_id"`
	Diagnoses          []domain.Diagnosis         `json:"diagnoses"`
	Parts              []domain.ClaimPart         `json:"parts"`
	Attachments        []string                   `json:"attachments"`
	Costs              domain.ClaimCosts          `json:"costs"`
	Eligibility        domain.EligibilitySnapshot `json:"eligibility"`
	Covered            bool                       `json:"covered"`
	RejectionCount     int                        `json:"rejection_count"`
	ResubmitCount      int                        `json:"resubmit_count"`
	CanResubmit        bool                       `json:"can_resubmit"`
	RejectionReason    string                     `json:"rejection_reason,omitempty"`
	RejectionNotes     string                     `json:"rejection_notes,omitempty"`
	ApprovalNotes      string                     `json:"approval_notes,omitempty"`
	ProblemReports     []domain.ProblemReport     `json:"problem_reports"`
	Inspection         *domain.Inspection         `json:"inspection"`
	CancelRequested    bool                       `json:"cancel_requested"`
	PaymentStatus      domain.PaymentStatus       `json:"payment_status,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
	ApprovedAt         *time.Time                 `json:"approved_at"`
	RejectedAt         *time.Time                 `json:"rejected_at"`
	ReadyForHandoverAt *time.Time                 `json:"ready_for_handover_at"`
	ClosedAt           *time.Time                 `json:"closed_at"`
	Version            int64                      `json:"version"`
}

// ClaimSummary is a list row.
type ClaimSummary struct {
	ID           string             `json:"id"`
	ClaimNumber  string             `json:"claim_number"`
	VehicleID    string             `json:"vehicle_id"`
	CustomerID   string             `json:"customer_id"`
	Status       domain.ClaimStatus `json:"status"`
	RepairPath   domain.RepairPath  `json:"repair_path"`
	TechnicianID *string            `json:"technician_id"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Version      int64              `json:"version"`
}

// ApprovalTaskResponse represents an approval task.
type ApprovalTaskResponse struct {
	ID          string                `json:"id"`
	ClaimID     string                `json:"claim_id"`
	LineItemID  *string               `json:"line_item_id"`
	Type        domain.ApprovalType   `json:"type"`
	Status      domain.ApprovalStatus `json:"status"`
	RequestedBy string                `json:"requested_by"`
	ApproverID  *string               `json:"approver_id"`
	QuotedCents *int64                `json:"quoted_cents"`
	Comment     string                `json:"comment,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	DecidedAt   *time.Time            `json:"decided_at"`
}

// HistoryEntryResponse represents an audit entry.
type HistoryEntryResponse struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ChangeType domain.ClaimChangeType `json:"change_type"`
	OldValue   map[string]any         `json:"old_value"`
	NewValue   map[string]any         `json:"new_value"`
	CreatedAt  time.Time              `json:"created_at"`
}

// CancellationResponse represents the cancellation record.
type CancellationResponse struct {
	ClaimID        string                    `json:"claim_id"`
	Status         domain.CancellationStatus `json:"status"`
	RequestCount   int                       `json:"request_count"`
	PreviousStatus *domain.ClaimStatus       `json:"previous_status"`
	Reason         string                    `json:"reason,omitempty"`
	RequestedBy    string                    `json:"requested_by,omitempty"`
	HandledBy      *string                   `json:"handled_by"`
	RequestedAt    *time.Time                `json:"requested_at"`
	HandledAt      *time.Time                `json:"handled_at"`
}
