package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/api/dto"
	"github.com/spec-kit/warranty-service/internal/auth"
	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/service"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

// parseBody decodes the JSON body. An empty body leaves req untouched.
func parseBody(c *fiber.Ctx, req any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// claimRef takes the expected version from the body or, when absent, from an
// If-Match header.
func claimRef(c *fiber.Ctx, version int64) service.ClaimRef {
	if version == 0 {
		if tag := strings.Trim(c.Get(fiber.HeaderIfMatch), `"W/ `); tag != "" {
			version, _ = strconv.ParseInt(tag, 10, 64)
		}
	}
	return service.ClaimRef{ID: c.Params("id"), Version: version}
}

func parseInt(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func parseTime(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid time, use RFC3339 or YYYY-MM-DD", map[string]any{"value": val})
	}
	return &t, nil
}

func parseStatuses(val string) []domain.ClaimStatus {
	var out []domain.ClaimStatus
	for _, part := range strings.Split(val, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, domain.ClaimStatus(strings.ToUpper(s)))
		}
	}
	return out
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}

func claimResponse(claim *domain.Claim) dto.ClaimResponse {
	return dto.ClaimResponse{
		ID:                 claim.ID,
		ClaimNumber:        claim.ClaimNumber,
		VehicleID:          claim.VehicleID,
		CustomerID:         claim.CustomerID,
		Status:             claim.Status,
		RepairPath:         claim.RepairPath,
		FailureDescription: claim.FailureDescription,
		CreatedBy:          claim.CreatedBy,
		TechnicianID:       claim.TechnicianID,
		Diagnoses:          nonNil(claim.Diagnoses),
		Parts:              nonNil(claim.Parts),
		Attachments:        nonNil(claim.Attachments),
		Costs:              claim.Costs,
		Eligibility:        claim.Eligibility,
		Covered:            claim.Eligibility.Covered(),
		RejectionCount:     claim.RejectionCount,
		ResubmitCount:      claim.ResubmitCount,
		CanResubmit:        claim.CanResubmit,
		RejectionReason:    claim.RejectionReason,
		RejectionNotes:     claim.RejectionNotes,
		ApprovalNotes:      claim.ApprovalNotes,
		ProblemReports:     nonNil(claim.ProblemReports),
		Inspection:         claim.Inspection,
		CancelRequested:    claim.CancelRequested,
		PaymentStatus:      claim.PaymentStatus,
		CreatedAt:          claim.CreatedAt,
		UpdatedAt:          claim.UpdatedAt,
		ApprovedAt:         claim.ApprovedAt,
		RejectedAt:         claim.RejectedAt,
		ReadyForHandoverAt: claim.ReadyForHandoverAt,
		ClosedAt:           claim.ClosedAt,
		Version:            claim.Version,
	}
}

func claimSummaries(claims []domain.Claim) []dto.ClaimSummary {
	items := make([]dto.ClaimSummary, 0, len(claims))
	for _, claim := range claims {
		items = append(items, dto.ClaimSummary{
			ID:           claim.ID,
			ClaimNumber:  claim.ClaimNumber,
			VehicleID:    claim.VehicleID,
			CustomerID:   claim.CustomerID,
			Status:       claim.Status,
			RepairPath:   claim.RepairPath,
			TechnicianID: claim.TechnicianID,
			UpdatedAt:    claim.UpdatedAt,
			Version:      claim.Version,
		})
	}
	return items
}

func taskResponses(tasks []domain.ApprovalTask) []dto.ApprovalTaskResponse {
	items := make([]dto.ApprovalTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, dto.ApprovalTaskResponse{
			ID:          t.ID,
			ClaimID:     t.ClaimID,
			LineItemID:  t.LineItemID,
			Type:        t.Type,
			Status:      t.Status,
			RequestedBy: t.RequestedBy,
			ApproverID:  t.ApproverID,
			QuotedCents: t.QuotedCents,
			Comment:     t.Comment,
			CreatedAt:   t.CreatedAt,
			DecidedAt:   t.DecidedAt,
		})
	}
	return items
}

func historyResponses(entries []domain.ClaimHistory) []dto.HistoryEntryResponse {
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		items = append(items, dto.HistoryEntryResponse{
			ID:         h.ID,
			ActorID:    h.ActorID,
			ChangeType: h.ChangeType,
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			CreatedAt:  h.CreatedAt,
		})
	}
	return items
}

func serialResponse(s *domain.PartSerial) dto.PartSerialResponse {
	return dto.PartSerialResponse{
		ID:               s.ID,
		PartID:           s.PartID,
		SerialNumber:     s.SerialNumber,
		ThirdParty:       s.ThirdParty,
		Status:           s.Status,
		ReservedForClaim: s.ReservedForClaim,
		ReservedAt:       s.ReservedAt,
		InstalledVIN:     s.InstalledVIN,
		WorkOrderID:      s.WorkOrderID,
		InstalledBy:      s.InstalledBy,
		InstalledAt:      s.InstalledAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func serialResponses(serials []domain.PartSerial) []dto.PartSerialResponse {
	items := make([]dto.PartSerialResponse, 0, len(serials))
	for i := range serials {
		items = append(items, serialResponse(&serials[i]))
	}
	return items
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
