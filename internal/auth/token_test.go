package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/domain"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "idp", time.Hour)
	token, expires, err := tm.GenerateToken("tech-1", []domain.Role{domain.RoleTechnician})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", expires)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	actor := claims.Actor()
	if actor.ID != "tech-1" || !actor.HasRole(domain.RoleTechnician) || actor.HasRole(domain.RoleEVMStaff) {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecretIssuerAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", "idp", time.Hour)
	token, _, _ := tm.GenerateToken("u1", nil)

	if _, err := NewTokenManager("other", "idp", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := NewTokenManager("secret", "someone-else", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected issuer error")
	}

	expired := NewTokenManager("secret", "idp", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.GenerateToken("u1", nil)
	if _, err := tm.ParseToken(old); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestRequireRole(t *testing.T) {
	tm := NewTokenManager("secret", "idp", time.Hour)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.SendStatus(de.HTTPStatus)
		},
	})
	app.Get("/evm", NewAuthMiddleware(tm).Handle, RequireRole(domain.RoleEVMStaff), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	cases := []struct {
		name  string
		roles []domain.Role
		auth  bool
		want  int
	}{
		{"no token", nil, false, http.StatusUnauthorized},
		{"wrong role", []domain.Role{domain.RoleTechnician}, true, http.StatusForbidden},
		{"evm staff", []domain.Role{domain.RoleEVMStaff}, true, http.StatusNoContent},
		{"admin", []domain.Role{domain.RoleAdmin}, true, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/evm", nil)
			if tc.auth {
				token, _, _ := tm.GenerateToken("u1", tc.roles)
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}
