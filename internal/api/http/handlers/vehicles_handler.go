package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/api/dto"
	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/eligibility"
	"github.com/spec-kit/warranty-service/internal/service"
)

// VehiclesHandler registers vehicles and answers coverage questions.
type VehiclesHandler struct {
	eligibility *service.EligibilityService
}

// NewVehiclesHandler constructs handler.
func NewVehiclesHandler(svc *service.EligibilityService) *VehiclesHandler {
	return &VehiclesHandler{eligibility: svc}
}

// Register POST /vehicles.
func (h *VehiclesHandler) Register(c *fiber.Ctx) error {
	var req dto.VehicleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	vehicle, err := h.eligibility.RegisterVehicle(c.UserContext(), domain.Vehicle{
		ID:               req.ID,
		VIN:              req.VIN,
		Model:            req.Model,
		CustomerID:       req.CustomerID,
		RegistrationDate: req.RegistrationDate,
		MileageKm:        req.MileageKm,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.VehicleResponse{
		ID:               vehicle.ID,
		VIN:              vehicle.VIN,
		Model:            vehicle.Model,
		CustomerID:       vehicle.CustomerID,
		RegistrationDate: vehicle.RegistrationDate,
		MileageKm:        vehicle.MileageKm,
		UpdatedAt:        vehicle.UpdatedAt,
	}})
}

// Eligibility GET /vehicles/:id/eligibility?component=&as_of=.
func (h *VehiclesHandler) Eligibility(c *fiber.Ctx) error {
	asOf, err := parseTime(c.Query("as_of"))
	if err != nil {
		return err
	}
	res, err := h.eligibility.EvaluateForVehicle(c.UserContext(), c.Params("id"), c.Query("component"), asOf)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": eligibilityResponse(res, asOf)})
}

func eligibilityResponse(res eligibility.Result, asOf *time.Time) dto.EligibilityResponse {
	at := time.Now().UTC()
	if asOf != nil {
		at = *asOf
	}
	return dto.EligibilityResponse{
		Eligible:     res.Eligible,
		Reasons:      nonNil(res.Reasons),
		AppliedYears: res.AppliedYears,
		AppliedKm:    res.AppliedKm,
		RuleID:       res.RuleID,
		AsOf:         at,
	}
}
