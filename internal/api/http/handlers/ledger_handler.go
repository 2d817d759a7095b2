package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/api/dto"
	"github.com/spec-kit/warranty-service/internal/service"
)

// LedgerHandler exposes part serial stock.
type LedgerHandler struct {
	ledger *service.LedgerService
}

// NewLedgerHandler constructs handler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// RegisterSerial POST /parts/serials.
func (h *LedgerHandler) RegisterSerial(c *fiber.Ctx) error {
	var req dto.RegisterSerialRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	serial, err := h.ledger.RegisterSerial(c.UserContext(), service.RegisterSerialInput{
		PartID:       req.PartID,
		SerialNumber: req.SerialNumber,
		ThirdParty:   req.ThirdParty,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": serialResponse(serial)})
}

// Availability GET /parts/:partId/availability?quantity=.
func (h *LedgerHandler) Availability(c *fiber.Ctx) error {
	avail, err := h.ledger.CheckAvailability(c.UserContext(), c.Params("partId"), parseInt(c.Query("quantity"), 1))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"part_id":    avail.PartID,
		"requested":  avail.Requested,
		"available":  avail.Available,
		"sufficient": avail.Sufficient,
	}})
}

// AvailableSerials GET /parts/:partId/serials.
func (h *LedgerHandler) AvailableSerials(c *fiber.Ctx) error {
	serials, err := h.ledger.GetAvailableSerials(c.UserContext(), c.Params("partId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serialResponses(serials)})
}

// Install POST /parts/serials/:id/install.
func (h *LedgerHandler) Install(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.InstallRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	serial, err := h.ledger.InstallOnVehicle(c.UserContext(), actor, service.InstallInput{
		SerialID:    c.Params("id"),
		VehicleVIN:  req.VehicleVIN,
		WorkOrderID: req.WorkOrderID,
		ClaimID:     req.ClaimID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serialResponse(serial)})
}

// Deactivate POST /parts/serials/:id/deactivate.
func (h *LedgerHandler) Deactivate(c *fiber.Ctx) error {
	serial, err := h.ledger.Deactivate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serialResponse(serial)})
}

// Activate POST /parts/serials/:id/activate.
func (h *LedgerHandler) Activate(c *fiber.Ctx) error {
	serial, err := h.ledger.Activate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serialResponse(serial)})
}
