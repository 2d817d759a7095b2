package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/api/dto"
	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/service"
)

// CancellationHandler exposes the cancellation sub-flow.
type CancellationHandler struct {
	service *service.CancellationService
}

// NewCancellationHandler constructs handler.
func NewCancellationHandler(svc *service.CancellationService) *CancellationHandler {
	return &CancellationHandler{service: svc}
}

// Get GET /claims/:id/cancellation.
func (h *CancellationHandler) Get(c *fiber.Ctx) error {
	record, err := h.service.GetCancellation(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CancellationResponse{
		ClaimID:        record.ClaimID,
		Status:         record.Status,
		RequestCount:   record.RequestCount,
		PreviousStatus: record.PreviousStatus,
		Reason:         record.Reason,
		RequestedBy:    record.RequestedBy,
		HandledBy:      record.HandledBy,
		RequestedAt:    record.RequestedAt,
		HandledAt:      record.HandledAt,
	}})
}

// Request POST /claims/:id/cancellation.
func (h *CancellationHandler) Request(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.service.RequestCancel(c.UserContext(), actor, ref, req.Comment)
	})
}

// Accept POST /claims/:id/cancellation/accept.
func (h *CancellationHandler) Accept(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.service.AcceptCancel(c.UserContext(), actor, ref, req.Comment)
	})
}

// Reject POST /claims/:id/cancellation/reject.
func (h *CancellationHandler) Reject(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.service.RejectCancel(c.UserContext(), actor, ref, req.Comment)
	})
}

// ConfirmHandover POST /claims/:id/cancellation/confirm-handover.
func (h *CancellationHandler) ConfirmHandover(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.service.ConfirmHandoverCancel(c.UserContext(), actor, ref, req.Comment)
	})
}

// Reopen POST /claims/:id/cancellation/reopen.
func (h *CancellationHandler) Reopen(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return runClaimCommand(c, &req, &req.Version, func(actor domain.Actor, ref service.ClaimRef) (*domain.Claim, error) {
		return h.service.ReopenAfterCancel(c.UserContext(), actor, ref, req.Comment)
	})
}
