package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/observability"
	"github.com/spec-kit/warranty-service/internal/repository"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// ClaimRef identifies a claim and, optionally, the version the caller last
// read. A zero Version skips the caller-side check; the store still rejects
// concurrent writers.
type ClaimRef struct {
	ID      string
	Version int64
}

// claimWriter holds what every claim-mutating service needs: conditional
// load/save, audit history, events and metrics.
type claimWriter struct {
	claims     repository.ClaimRepository
	history    repository.ClaimHistoryRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

func newClaimWriter(claims repository.ClaimRepository, history repository.ClaimHistoryRepository, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger, clock Clock) claimWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return claimWriter{
		claims:     claims,
		history:    history,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        clock,
	}
}

// load fetches the claim and enforces the caller's expected version.
func (w *claimWriter) load(ctx context.Context, ref ClaimRef) (*domain.Claim, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return nil, apperrors.NewValidationError("claim id required", nil)
	}
	claim, err := w.claims.GetByID(ctx, ref.ID)
	if err != nil {
		return nil, mapRepoError("claim", ref.ID, err)
	}
	if ref.Version != 0 && claim.Version != ref.Version {
		return nil, apperrors.NewStaleVersion("claim", ref.ID)
	}
	return claim, nil
}

// save writes the claim conditionally and records the status change, if any.
func (w *claimWriter) save(ctx context.Context, actor domain.Actor, claim *domain.Claim, from domain.ClaimStatus, comment string) error {
	claim.UpdatedAt = w.now()
	if err := w.claims.Update(ctx, claim); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			w.logger.Debug("stale claim write", zap.String("claim_id", claim.ID), zap.String("actor_id", actor.ID))
		}
		return mapRepoError("claim", claim.ID, err)
	}
	if from == claim.Status {
		return nil
	}
	w.metrics.RecordTransition(string(from), string(claim.Status))
	w.logger.Info("claim transition",
		zap.String("claim_id", claim.ID),
		zap.String("from", string(from)),
		zap.String("to", string(claim.Status)),
		zap.String("actor_id", actor.ID))
	w.record(ctx, actor, claim.ID, domain.ChangeTypeStatus,
		map[string]any{"status": from},
		map[string]any{"status": claim.Status, "comment": comment})
	w.publish(ctx, claim, actor, events.EventClaimStatusChanged, events.ClaimStatusChangedPayload{
		OldStatus: from,
		NewStatus: claim.Status,
		Comment:   comment,
	})
	return nil
}

// record appends an audit entry. The claim is already committed, so a failed
// audit write is logged rather than returned.
func (w *claimWriter) record(ctx context.Context, actor domain.Actor, claimID string, changeType domain.ClaimChangeType, oldValue, newValue map[string]any) {
	if w.history == nil {
		return
	}
	entry := &domain.ClaimHistory{
		ID:         uuid.NewString(),
		ClaimID:    claimID,
		ActorID:    actor.ID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  w.now(),
	}
	if err := w.history.Create(ctx, entry); err != nil {
		w.logger.Warn("failed to record claim history",
			zap.String("claim_id", claimID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}

func (w *claimWriter) publish(ctx context.Context, claim *domain.Claim, actor domain.Actor, eventType events.EventType, payload any) {
	if w.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ClaimID:    claim.ID,
		ClaimNo:    claim.ClaimNumber,
		CustomerID: claim.CustomerID,
		ActorID:    actor.ID,
		Timestamp:  w.now(),
		Payload:    payload,
	}
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("event handler failed",
			zap.String("claim_id", claim.ID),
			zap.String("event", string(eventType)),
			zap.Error(err))
	}
}

// requireTransition fails with a conflict naming the legal next states.
func requireTransition(claim *domain.Claim, to domain.ClaimStatus) error {
	if domain.CanTransition(claim.Status, to) {
		return nil
	}
	return invalidTransition(claim, to)
}

func invalidTransition(claim *domain.Claim, to domain.ClaimStatus) error {
	allowed := domain.AllowedNext(claim.Status)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return apperrors.NewConflictReason(apperrors.ReasonInvalidTransition,
		fmt.Sprintf("cannot move claim from %s to %s", claim.Status, to),
		map[string]any{
			"from":    claim.Status,
			"to":      to,
			"allowed": names,
		})
}

// requireStatus fails unless the claim is in one of the given statuses.
func requireStatus(claim *domain.Claim, to domain.ClaimStatus, from ...domain.ClaimStatus) error {
	for _, s := range from {
		if claim.Status == s {
			return requireTransition(claim, to)
		}
	}
	return invalidTransition(claim, to)
}

// mapRepoError converts repository sentinels into domain errors.
func mapRepoError(resource, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrStaleVersion):
		return apperrors.NewStaleVersion(resource, id)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", map[string]any{"id": id})
	default:
		return err
	}
}

func ptr[T any](v T) *T {
	return &v
}
