package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticateRequest(t *testing.T) {
	svc := NewService([]string{"secret", " "})

	if _, err := svc.AuthenticateRequest(context.Background(), ""); err != ErrMissingToken {
		t.Fatalf("expected missing token, got %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), "Basic abc"); err != ErrMissingToken {
		t.Fatalf("expected missing token for non-bearer scheme, got %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), "Bearer nope"); err != ErrInvalidToken {
		t.Fatalf("expected invalid token, got %v", err)
	}
	subject, err := svc.AuthenticateRequest(context.Background(), "bearer secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if len(subject.KeyID) != 8 {
		t.Fatalf("unexpected key id: %q", subject.KeyID)
	}
}

func TestMiddleware(t *testing.T) {
	var (
		seen  Subject
		found bool
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, found = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})

	open := NewService(nil).Middleware(MiddlewareConfig{})(next)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusAccepted || found {
		t.Fatalf("disabled auth should pass through: %d %+v", rec.Code, seen)
	}

	guarded := NewService([]string{"secret"}).Middleware(MiddlewareConfig{AuditEvent: "test"})(next)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted || !found || seen.KeyID == "" {
		t.Fatalf("expected authenticated request: %d %+v", rec.Code, seen)
	}
}
