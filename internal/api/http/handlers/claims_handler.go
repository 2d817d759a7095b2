package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/api/dto"
	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/service"
)

// ClaimsHandler exposes the claim workflow.
type ClaimsHandler struct {
	claims      *service.ClaimService
	eligibility *service.EligibilityService
	ledger      *service.LedgerService
}

// NewClaimsHandler constructs handler.
func NewClaimsHandler(claims *service.ClaimService, eligibility *service.EligibilityService, ledger *service.LedgerService) *ClaimsHandler {
	return &ClaimsHandler{claims: claims, eligibility: eligibility, ledger: ledger}
}

// SaveDraft POST /claims/drafts and PUT /claims/drafts/:id.
func (h *ClaimsHandler) SaveDraft(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ClaimRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	claim, err := h.claims.SaveDraft(c.UserContext(), actor, claimRef(c, req.Version), claimInput(req))
	if err != nil {
		return err
	}
	status := http.StatusOK
	if c.Params("id") == "" {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": claimResponse(claim)})
}

// DeleteDraft DELETE /claims/drafts/:id.
func (h *ClaimsHandler) DeleteDraft(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.claims.DeleteDraft(c.UserContext(), actor, claimRef(c, 0)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateIntake POST /claims. A draft_id promotes an existing draft.
func (h *ClaimsHandler) CreateIntake(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ClaimRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ref := service.ClaimRef{ID: req.DraftID, Version: req.Version}
	claim, err := h.claims.CreateIntake(c.UserContext(), actor, ref, claimInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": claimResponse(claim)})
}

// ListClaims GET /claims.
func (h *ClaimsHandler) ListClaims(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	statuses := parseStatuses(c.Query("status"))
	var (
		claims []domain.Claim
		err    error
	)
	if tech := c.Query("technician_id"); tech != "" {
		claims, err = h.claims.ListClaimsByTechnician(c.UserContext(), tech, statuses, limit, offset)
	} else {
		claims, err = h.claims.ListClaimsByStatus(c.UserContext(), statuses, limit, offset)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": claimSummaries(claims)})
}

// Stats GET /claims/stats.
func (h *ClaimsHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.claims.CountClaimsByStatus(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}

// GetClaim GET /claims/:id.
func (h *ClaimsHandler) GetClaim(c *fiber.Ctx) error {
	claim, err := h.claims.GetClaim(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderETag, formatVersion(claim.Version))
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

// Summary GET /claims/:id/summary.
func (h *ClaimsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.claims.GetClaimSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// History GET /claims/:id/history.
func (h *ClaimsHandler) History(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	entries, err := h.claims.ListHistory(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// Tasks GET /claims/:id/tasks.
func (h *ClaimsHandler) Tasks(c *fiber.Ctx) error {
	tasks, err := h.claims.ListTasks(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponses(tasks)})
}

// Checklist GET /claims/:id/checklist.
func (h *ClaimsHandler) Checklist(c *fiber.Ctx) error {
	checklist, err := h.claims.ValidateForSubmission(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": checklist})
}

// Serials GET /claims/:id/serials.
func (h *ClaimsHandler) Serials(c *fiber.Ctx) error {
	serials, err := h.ledger.GetSerialsForClaim(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serialResponses(serials)})
}

// Eligibility GET /claims/:id/eligibility?as_of=.
func (h *ClaimsHandler) Eligibility(c *fiber.Ctx) error {
	asOf, err := parseTime(c.Query("as_of"))
	if err != nil {
		return err
	}
	res, err := h.eligibility.EvaluateForClaim(c.UserContext(), c.Params("id"), asOf)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": eligibilityResponse(res, asOf)})
}

// Override POST /claims/:id/eligibility/override.
func (h *ClaimsHandler) Override(c *fiber.Ctx) error {
	var req dto.OverrideRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.eligibility.RecordOverride(c.UserContext(), actor, ref, service.OverrideInput{
			Covered:    req.Covered,
			Assessment: req.Assessment,
		})
	})
}

// UpdateDiagnostic POST /claims/:id/diagnosis.
func (h *ClaimsHandler) UpdateDiagnostic(c *fiber.Ctx) error {
	var req dto.DiagnosticRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		parts := make([]domain.ClaimPart, 0, len(req.Parts))
		for _, p := range req.Parts {
			parts = append(parts, domain.ClaimPart{
				LineItemID:    p.LineItemID,
				PartID:        p.PartID,
				Quantity:      p.Quantity,
				UnitCostCents: p.UnitCostCents,
				ThirdParty:    p.ThirdParty,
			})
		}
		if req.Parts == nil {
			parts = nil
		}
		return h.claims.UpdateDiagnostic(c.UserContext(), actor, ref, service.DiagnosticInput{
			Findings:                 req.Findings,
			Component:                req.Component,
			LaborHours:               req.LaborHours,
			Parts:                    parts,
			Attachments:              req.Attachments,
			WarrantyCostCents:        req.WarrantyCostCents,
			ServiceCostCents:         req.ServiceCostCents,
			ThirdPartyPartsCostCents: req.ThirdPartyPartsCostCents,
			Evaluate:                 req.Evaluate,
			AsOf:                     req.AsOf,
		})
	})
}

// AssignTechnician POST /claims/:id/assign.
func (h *ClaimsHandler) AssignTechnician(c *fiber.Ctx) error {
	var req dto.AssignRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.AssignTechnician(c.UserContext(), actor, ref, req.TechnicianID)
	})
}

// Submit POST /claims/:id/submit.
func (h *ClaimsHandler) Submit(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.SubmitToEvm(c.UserContext(), actor, ref, req.Comment)
	})
}

// Approve POST /claims/:id/approve.
func (h *ClaimsHandler) Approve(c *fiber.Ctx) error {
	var req dto.ApproveRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		reservations := make([]service.PartRequest, 0, len(req.Reservations))
		for _, r := range req.Reservations {
			reservations = append(reservations, service.PartRequest{PartID: r.PartID, Quantity: r.Quantity})
		}
		return h.claims.Approve(c.UserContext(), actor, ref, service.ApproveInput{
			Notes:                req.Notes,
			CompanyPaidCostCents: req.CompanyPaidCostCents,
			Reservations:         reservations,
			ReserveClaimParts:    req.ReserveClaimParts,
		})
	})
}

// Reject POST /claims/:id/reject.
func (h *ClaimsHandler) Reject(c *fiber.Ctx) error {
	var req dto.RejectRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.Reject(c.UserContext(), actor, ref, service.RejectInput{Reason: req.Reason, Notes: req.Notes})
	})
}

// RequestMoreInfo POST /claims/:id/request-info.
func (h *ClaimsHandler) RequestMoreInfo(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.RequestMoreInfo(c.UserContext(), actor, ref, req.Comment)
	})
}

// Resubmit POST /claims/:id/resubmit.
func (h *ClaimsHandler) Resubmit(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.Resubmit(c.UserContext(), actor, ref, req.Comment)
	})
}

// StartRepair POST /claims/:id/start-repair.
func (h *ClaimsHandler) StartRepair(c *fiber.Ctx) error {
	var req dto.AssignRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.StartRepair(c.UserContext(), actor, ref, req.TechnicianID)
	})
}

// ReportProblem POST /claims/:id/problems.
func (h *ClaimsHandler) ReportProblem(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.ReportProblem(c.UserContext(), actor, ref, req.Comment)
	})
}

// ResolveProblem POST /claims/:id/problems/resolve.
func (h *ClaimsHandler) ResolveProblem(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.ResolveProblem(c.UserContext(), actor, ref, req.Comment)
	})
}

// ConfirmResolution POST /claims/:id/problems/confirm.
func (h *ClaimsHandler) ConfirmResolution(c *fiber.Ctx) error {
	var req dto.ConfirmResolutionRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.ConfirmResolution(c.UserContext(), actor, ref, service.ConfirmResolutionInput{
			Confirmed:      req.Confirmed,
			NextAction:     req.NextAction,
			NewDescription: req.NewDescription,
		})
	})
}

// CompleteRepair POST /claims/:id/complete.
func (h *ClaimsHandler) CompleteRepair(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.CompleteRepair(c.UserContext(), actor, ref, req.Comment)
	})
}

// Inspect POST /claims/:id/inspection.
func (h *ClaimsHandler) Inspect(c *fiber.Ctx) error {
	var req dto.InspectionRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.PerformFinalInspection(c.UserContext(), actor, ref, req.Passed, req.Notes)
	})
}

// ReadyForHandover POST /claims/:id/ready.
func (h *ClaimsHandler) ReadyForHandover(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.MarkReadyForHandover(c.UserContext(), actor, ref)
	})
}

// Handover POST /claims/:id/handover.
func (h *ClaimsHandler) Handover(c *fiber.Ctx) error {
	var req dto.HandoverRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.HandoverVehicle(c.UserContext(), actor, ref, service.HandoverInput{Satisfied: req.Satisfied, Issue: req.Issue})
	})
}

// Close POST /claims/:id/close.
func (h *ClaimsHandler) Close(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.CloseClaim(c.UserContext(), actor, ref, req.Comment)
	})
}

// CustomerQuote POST /claims/:id/customer-quote.
func (h *ClaimsHandler) CustomerQuote(c *fiber.Ctx) error {
	var req dto.QuoteRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.RequestCustomerApproval(c.UserContext(), actor, ref, service.QuoteInput{
			QuotedCents: req.QuotedCents,
			LineItemID:  req.LineItemID,
			Comment:     req.Comment,
		})
	})
}

// CustomerApproval POST /claims/:id/customer-approval.
func (h *ClaimsHandler) CustomerApproval(c *fiber.Ctx) error {
	var req dto.CustomerApprovalRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.RecordCustomerApproval(c.UserContext(), actor, ref, req.Approved, req.Comment)
	})
}

// Payment POST /claims/:id/payment.
func (h *ClaimsHandler) Payment(c *fiber.Ctx) error {
	var req dto.PaymentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.UpdatePaymentStatus(c.UserContext(), actor, ref, req.PaymentStatus)
	})
}

// WorkDone POST /claims/:id/work-done.
func (h *ClaimsHandler) WorkDone(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.MarkWorkDone(c.UserContext(), actor, ref)
	})
}

// Done POST /claims/:id/done.
func (h *ClaimsHandler) Done(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.claims.MarkClaimDone(c.UserContext(), actor, ref)
	})
}

// Reserve POST /claims/:id/reservations.
func (h *ClaimsHandler) Reserve(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ReserveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	serials, err := h.claims.ReserveParts(c.UserContext(), actor, c.Params("id"), req.PartID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": serialResponses(serials)})
}

// Release DELETE /claims/:id/reservations/:partId.
func (h *ClaimsHandler) Release(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	released, err := h.claims.ReleaseParts(c.UserContext(), actor, c.Params("id"), c.Params("partId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"released": released}})
}

// runClaimCommand parses req, resolves the actor and claim reference, runs fn
// and renders the updated claim.
func runClaimCommand(c *fiber.Ctx, req any, version *int64, fn func(domain.Actor, service.ClaimRef) (*domain.Claim, error)) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := parseBody(c, req); err != nil {
		return err
	}
	claim, err := fn(actor, claimRef(c, *version))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderETag, formatVersion(claim.Version))
	return c.JSON(fiber.Map{"data": claimResponse(claim)})
}

func claimInput(req dto.ClaimRequest) service.ClaimInput {
	return service.ClaimInput{
		CustomerID:         req.CustomerID,
		VehicleID:          req.VehicleID,
		FailureDescription: req.FailureDescription,
		RepairPath:         req.RepairPath,
		Attachments:        req.Attachments,
	}
}

func formatVersion(v int64) string {
	return `"` + strconv.FormatInt(v, 10) + `"`
}
