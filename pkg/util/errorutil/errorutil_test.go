package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("reserve: %w", NewConflictReason(ReasonInsufficientStock, "not enough stock", map[string]any{"available": 1}))

	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !HasReason(err, ReasonInsufficientStock) {
		t.Fatalf("expected reason %s", ReasonInsufficientStock)
	}
	if IsValidation(err) || IsNotFound(err) {
		t.Fatalf("conflict must not match other predicates")
	}
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	if de.Code != CodeInternal || de.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping: %+v", de)
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}

func TestStaleVersionCarriesResource(t *testing.T) {
	de := ToDomainError(NewStaleVersion("claim", "c-1"))
	if de.Reason() != ReasonStaleVersion {
		t.Fatalf("reason = %q", de.Reason())
	}
	if de.Details["id"] != "c-1" {
		t.Fatalf("details = %v", de.Details)
	}
	if de.HTTPStatus != http.StatusConflict {
		t.Fatalf("status = %d", de.HTTPStatus)
	}
}
