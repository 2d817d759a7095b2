package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/api/http/handlers"
	"github.com/spec-kit/warranty-service/internal/auth"
	"github.com/spec-kit/warranty-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Claims         *handlers.ClaimsHandler
	Cancellation   *handlers.CancellationHandler
	Ledger         *handlers.LedgerHandler
	Vehicles       *handlers.VehiclesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	const (
		staff = domain.RoleServiceStaff
		tech  = domain.RoleTechnician
		evm   = domain.RoleEVMStaff
	)
	serviceCenter := auth.RequireRole(staff, tech)
	staffOnly := auth.RequireRole(staff)
	techOnly := auth.RequireRole(tech)
	evmOnly := auth.RequireRole(evm)
	anyRole := auth.RequireRole()

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/metrics", auth.RequireRole(domain.RoleAdmin), cfg.Health.Metrics)

	api.Post("/vehicles", staffOnly, cfg.Vehicles.Register)
	api.Get("/vehicles/:id/eligibility", anyRole, cfg.Vehicles.Eligibility)

	claims := api.Group("/claims")
	claims.Post("/drafts", staffOnly, cfg.Claims.SaveDraft)
	claims.Put("/drafts/:id", staffOnly, cfg.Claims.SaveDraft)
	claims.Delete("/drafts/:id", staffOnly, cfg.Claims.DeleteDraft)
	claims.Post("/", staffOnly, cfg.Claims.CreateIntake)
	claims.Get("/", anyRole, cfg.Claims.ListClaims)
	claims.Get("/stats", anyRole, cfg.Claims.Stats)

	claims.Get("/:id", anyRole, cfg.Claims.GetClaim)
	claims.Get("/:id/summary", anyRole, cfg.Claims.Summary)
	claims.Get("/:id/history", anyRole, cfg.Claims.History)
	claims.Get("/:id/tasks", anyRole, cfg.Claims.Tasks)
	claims.Get("/:id/checklist", serviceCenter, cfg.Claims.Checklist)
	claims.Get("/:id/serials", anyRole, cfg.Claims.Serials)
	claims.Get("/:id/eligibility", anyRole, cfg.Claims.Eligibility)
	claims.Post("/:id/eligibility/override", auth.RequireRole(staff, evm), cfg.Claims.Override)

	// service center
	claims.Post("/:id/diagnosis", techOnly, cfg.Claims.UpdateDiagnostic)
	claims.Post("/:id/assign", staffOnly, cfg.Claims.AssignTechnician)
	claims.Post("/:id/submit", staffOnly, cfg.Claims.Submit)
	claims.Post("/:id/resubmit", staffOnly, cfg.Claims.Resubmit)
	claims.Post("/:id/start-repair", serviceCenter, cfg.Claims.StartRepair)
	claims.Post("/:id/problems", techOnly, cfg.Claims.ReportProblem)
	claims.Post("/:id/problems/confirm", techOnly, cfg.Claims.ConfirmResolution)
	claims.Post("/:id/complete", techOnly, cfg.Claims.CompleteRepair)
	claims.Post("/:id/inspection", staffOnly, cfg.Claims.Inspect)
	claims.Post("/:id/ready", staffOnly, cfg.Claims.ReadyForHandover)
	claims.Post("/:id/handover", staffOnly, cfg.Claims.Handover)
	claims.Post("/:id/close", staffOnly, cfg.Claims.Close)
	claims.Post("/:id/customer-quote", staffOnly, cfg.Claims.CustomerQuote)
	claims.Post("/:id/customer-approval", staffOnly, cfg.Claims.CustomerApproval)
	claims.Post("/:id/payment", staffOnly, cfg.Claims.Payment)
	claims.Post("/:id/work-done", techOnly, cfg.Claims.WorkDone)
	claims.Post("/:id/done", staffOnly, cfg.Claims.Done)

	// manufacturer
	claims.Post("/:id/approve", evmOnly, cfg.Claims.Approve)
	claims.Post("/:id/reject", evmOnly, cfg.Claims.Reject)
	claims.Post("/:id/request-info", evmOnly, cfg.Claims.RequestMoreInfo)
	claims.Post("/:id/problems/resolve", evmOnly, cfg.Claims.ResolveProblem)
	claims.Post("/:id/reservations", evmOnly, cfg.Claims.Reserve)
	claims.Delete("/:id/reservations/:partId", evmOnly, cfg.Claims.Release)

	cancel := claims.Group("/:id/cancellation")
	cancel.Get("/", anyRole, cfg.Cancellation.Get)
	cancel.Post("/", staffOnly, cfg.Cancellation.Request)
	cancel.Post("/accept", staffOnly, cfg.Cancellation.Accept)
	cancel.Post("/reject", staffOnly, cfg.Cancellation.Reject)
	cancel.Post("/confirm-handover", staffOnly, cfg.Cancellation.ConfirmHandover)
	cancel.Post("/reopen", staffOnly, cfg.Cancellation.Reopen)

	parts := api.Group("/parts")
	parts.Post("/serials", auth.RequireRole(staff, evm), cfg.Ledger.RegisterSerial)
	parts.Post("/serials/:id/install", techOnly, cfg.Ledger.Install)
	parts.Post("/serials/:id/deactivate", auth.RequireRole(staff, evm), cfg.Ledger.Deactivate)
	parts.Post("/serials/:id/activate", auth.RequireRole(staff, evm), cfg.Ledger.Activate)
	parts.Get("/:partId/availability", anyRole, cfg.Ledger.Availability)
	parts.Get("/:partId/serials", anyRole, cfg.Ledger.AvailableSerials)
}
