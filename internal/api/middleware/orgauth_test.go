package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/org"
)

func authProbe() (http.Handler, *string) {
	var captured string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = org.IDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &captured
}

func signToken(t *testing.T, secret, orgID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"org_id": orgID})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestOrgAuthFromHeader(t *testing.T) {
	next, captured := authProbe()
	auth := NewOrgAuth("", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-org-id", "org-a")
	rec := httptest.NewRecorder()
	auth.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if *captured != "org-a" {
		t.Errorf("org = %q, want org-a", *captured)
	}
}

func TestOrgAuthFromJWT(t *testing.T) {
	next, captured := authProbe()
	auth := NewOrgAuth("test-secret", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "org-jwt"))
	rec := httptest.NewRecorder()
	auth.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if *captured != "org-jwt" {
		t.Errorf("org = %q, want org-jwt", *captured)
	}
}

func TestOrgAuthRejectsBadToken(t *testing.T) {
	next, _ := authProbe()
	auth := NewOrgAuth("test-secret", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "org-x"))
	rec := httptest.NewRecorder()
	auth.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOrgAuthRejectsAnonymous(t *testing.T) {
	next, _ := authProbe()
	auth := NewOrgAuth("", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	auth.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
