package domain

import "time"

// ClaimStatus enumerates lifecycle states for warranty claims.
type ClaimStatus string

const (
	ClaimStatusDraft                   ClaimStatus = "DRAFT"
	ClaimStatusOpen                    ClaimStatus = "OPEN"
	ClaimStatusDiagnosed               ClaimStatus = "DIAGNOSED"
	ClaimStatusPendingEVMApproval      ClaimStatus = "PENDING_EVM_APPROVAL"
	ClaimStatusEVMApproved             ClaimStatus = "EVM_APPROVED"
	ClaimStatusEVMRejected             ClaimStatus = "EVM_REJECTED"
	ClaimStatusReturnedForInfo         ClaimStatus = "RETURNED_FOR_INFO"
	ClaimStatusInRepair                ClaimStatus = "IN_REPAIR"
	ClaimStatusProblemReported         ClaimStatus = "PROBLEM_REPORTED"
	ClaimStatusProblemSolved           ClaimStatus = "PROBLEM_SOLVED"
	ClaimStatusResolutionConfirmed     ClaimStatus = "RESOLUTION_CONFIRMED"
	ClaimStatusWorkDone                ClaimStatus = "WORK_DONE"
	ClaimStatusFinalInspection         ClaimStatus = "FINAL_INSPECTION"
	ClaimStatusReadyForHandover        ClaimStatus = "READY_FOR_HANDOVER"
	ClaimStatusClaimDone               ClaimStatus = "CLAIM_DONE"
	ClaimStatusClosed                  ClaimStatus = "CLOSED"
	ClaimStatusCancelRequested         ClaimStatus = "CANCEL_REQUESTED"
	ClaimStatusCancelAccepted          ClaimStatus = "CANCEL_ACCEPTED"
	ClaimStatusCancelled               ClaimStatus = "CANCELLED"
	ClaimStatusPendingCustomerApproval ClaimStatus = "PENDING_CUSTOMER_APPROVAL"
	ClaimStatusSCRepair                ClaimStatus = "SC_REPAIR"
)

// AllClaimStatuses lists every defined status in workflow order.
var AllClaimStatuses = []ClaimStatus{
	ClaimStatusDraft,
	ClaimStatusOpen,
	ClaimStatusDiagnosed,
	ClaimStatusPendingEVMApproval,
	ClaimStatusEVMApproved,
	ClaimStatusEVMRejected,
	ClaimStatusReturnedForInfo,
	ClaimStatusInRepair,
	ClaimStatusProblemReported,
	ClaimStatusProblemSolved,
	ClaimStatusResolutionConfirmed,
	ClaimStatusWorkDone,
	ClaimStatusFinalInspection,
	ClaimStatusReadyForHandover,
	ClaimStatusClaimDone,
	ClaimStatusClosed,
	ClaimStatusCancelRequested,
	ClaimStatusCancelAccepted,
	ClaimStatusCancelled,
	ClaimStatusPendingCustomerApproval,
	ClaimStatusSCRepair,
}

// Valid reports whether s is a defined status.
func (s ClaimStatus) Valid() bool {
	_, ok := claimTransitions[s]
	return ok
}

// RepairPath distinguishes warranty-covered repairs from customer-paid ones.
type RepairPath string

const (
	RepairPathWarranty RepairPath = "WARRANTY"
	RepairPathSelfPay  RepairPath = "SELF_PAY"
)

// PaymentStatus tracks customer payment on the self-pay path.
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = ""
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// DiagnosisSource records which step produced a diagnosis entry.
type DiagnosisSource string

const (
	DiagnosisSourceIntake     DiagnosisSource = "INTAKE"
	DiagnosisSourceTechnician DiagnosisSource = "TECHNICIAN"
	DiagnosisSourceHandover   DiagnosisSource = "HANDOVER"
)

// Diagnosis is one technician finding. Entries are appended, never rewritten.
type Diagnosis struct {
	ID           string          `json:"id"`
	Source       DiagnosisSource `json:"source"`
	TechnicianID string          `json:"technician_id,omitempty"`
	Component    string          `json:"component,omitempty"`
	Findings     string          `json:"findings"`
	LaborHours   float64         `json:"labor_hours,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// ClaimPart is a line item of parts planned or used for the repair.
type ClaimPart struct {
	LineItemID    string `json:"line_item_id"`
	PartID        string `json:"part_id"`
	Quantity      int    `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	ThirdParty    bool   `json:"third_party"`
}

// ClaimCosts holds monetary amounts in minor units.
// Nil pointers mean "not yet populated".
type ClaimCosts struct {
	WarrantyCostCents        *int64 `json:"warranty_cost_cents,omitempty"`
	CompanyPaidCostCents     *int64 `json:"company_paid_cost_cents,omitempty"`
	ServiceCostCents         *int64 `json:"service_cost_cents,omitempty"`
	ThirdPartyPartsCostCents *int64 `json:"third_party_parts_cost_cents,omitempty"`
	TotalEstimatedCostCents  *int64 `json:"total_estimated_cost_cents,omitempty"`
}

// Recalculate keeps TotalEstimatedCostCents equal to service + third-party
// whenever both are populated.
func (c *ClaimCosts) Recalculate() {
	if c.ServiceCostCents == nil || c.ThirdPartyPartsCostCents == nil {
		return
	}
	total := *c.ServiceCostCents + *c.ThirdPartyPartsCostCents
	c.TotalEstimatedCostCents = &total
}

// EligibilitySnapshot stores the evaluator output at evaluation time plus an
// optional manual override. Both are kept for audit.
type EligibilitySnapshot struct {
	Evaluated         bool       `json:"evaluated"`
	Eligible          bool       `json:"eligible"`
	Reasons           []string   `json:"reasons,omitempty"`
	AppliedYears      *int       `json:"applied_years,omitempty"`
	AppliedKm         *int       `json:"applied_km,omitempty"`
	RuleID            string     `json:"rule_id,omitempty"`
	EvaluatedAt       *time.Time `json:"evaluated_at,omitempty"`
	ManualOverride    *bool      `json:"manual_override,omitempty"`
	ManualConfirmedAt *time.Time `json:"manual_confirmed_at,omitempty"`
	ManualAssessment  string     `json:"manual_assessment,omitempty"`
	ManualBy          string     `json:"manual_by,omitempty"`
}

// Covered returns the effective decision: manual override when set.
func (e EligibilitySnapshot) Covered() bool {
	if e.ManualOverride != nil {
		return *e.ManualOverride
	}
	return e.Evaluated && e.Eligible
}

// ProblemReport captures a mid-repair mismatch raised by a technician.
type ProblemReport struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	ReportedBy  string     `json:"reported_by"`
	ReportedAt  time.Time  `json:"reported_at"`
	Resolution  string     `json:"resolution,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Confirmed   *bool      `json:"confirmed,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Inspection is the outcome of the final quality check.
type Inspection struct {
	InspectorID string    `json:"inspector_id"`
	Passed      bool      `json:"passed"`
	Notes       string    `json:"notes,omitempty"`
	InspectedAt time.Time `json:"inspected_at"`
}

// Claim is the aggregate root of the warranty workflow. Vehicle and customer
// are referenced by identifier only.
type Claim struct {
	ID                 string
	ClaimNumber        string
	VehicleID          string
	CustomerID         string
	Status             ClaimStatus
	RepairPath         RepairPath
	FailureDescription string
	CreatedBy          string
	TechnicianID       *string
	Diagnoses          []Diagnosis
	Parts              []ClaimPart
	Attachments        []string
	Costs              ClaimCosts
	Eligibility        EligibilitySnapshot
	RejectionCount     int
	ResubmitCount      int
	CanResubmit        bool
	RejectionReason    string
	RejectionNotes     string
	ApprovalNotes      string
	ProblemReports     []ProblemReport
	Inspection         *Inspection
	CancelRequested    bool
	PaymentStatus      PaymentStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ApprovedAt         *time.Time
	RejectedAt         *time.Time
	ReadyForHandoverAt *time.Time
	ClosedAt           *time.Time
	Version            int64
}

// HasDiagnosis reports whether a technician diagnosis is attached.
func (c *Claim) HasDiagnosis() bool {
	for _, d := range c.Diagnoses {
		if d.Source == DiagnosisSourceTechnician {
			return true
		}
	}
	return false
}

// LatestProblem returns the most recent problem report, if any.
func (c *Claim) LatestProblem() *ProblemReport {
	if len(c.ProblemReports) == 0 {
		return nil
	}
	return &c.ProblemReports[len(c.ProblemReports)-1]
}

// Clone returns a deep copy so stored aggregates cannot be mutated through
// shared slices or pointers.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	cp.TechnicianID = clonePtr(c.TechnicianID)
	cp.Diagnoses = append([]Diagnosis(nil), c.Diagnoses...)
	cp.Parts = append([]ClaimPart(nil), c.Parts...)
	cp.Attachments = append([]string(nil), c.Attachments...)
	cp.Costs = ClaimCosts{
		WarrantyCostCents:        clonePtr(c.Costs.WarrantyCostCents),
		CompanyPaidCostCents:     clonePtr(c.Costs.CompanyPaidCostCents),
		ServiceCostCents:         clonePtr(c.Costs.ServiceCostCents),
		ThirdPartyPartsCostCents: clonePtr(c.Costs.ThirdPartyPartsCostCents),
		TotalEstimatedCostCents:  clonePtr(c.Costs.TotalEstimatedCostCents),
	}
	cp.Eligibility.Reasons = append([]string(nil), c.Eligibility.Reasons...)
	cp.Eligibility.AppliedYears = clonePtr(c.Eligibility.AppliedYears)
	cp.Eligibility.AppliedKm = clonePtr(c.Eligibility.AppliedKm)
	cp.Eligibility.EvaluatedAt = clonePtr(c.Eligibility.EvaluatedAt)
	cp.Eligibility.ManualOverride = clonePtr(c.Eligibility.ManualOverride)
	cp.Eligibility.ManualConfirmedAt = clonePtr(c.Eligibility.ManualConfirmedAt)
	cp.ProblemReports = make([]ProblemReport, len(c.ProblemReports))
	for i, p := range c.ProblemReports {
		p.ResolvedAt = clonePtr(p.ResolvedAt)
		p.Confirmed = clonePtr(p.Confirmed)
		p.ConfirmedAt = clonePtr(p.ConfirmedAt)
		cp.ProblemReports[i] = p
	}
	if c.Inspection != nil {
		insp := *c.Inspection
		cp.Inspection = &insp
	}
	cp.ApprovedAt = clonePtr(c.ApprovedAt)
	cp.RejectedAt = clonePtr(c.RejectedAt)
	cp.ReadyForHandoverAt = clonePtr(c.ReadyForHandoverAt)
	cp.ClosedAt = clonePtr(c.ClosedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
