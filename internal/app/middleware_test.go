package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/rbac"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdminTokenAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	gate := AdminTokenAuth(newTestLogger(), string(hash))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer s3cret", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"missing scheme", "s3cret", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		gate(next).ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rr.Code, tc.want)
		}
	}
}

func TestSubjectHeaderAuth(t *testing.T) {
	var principal any
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = rbac.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
	req.Header.Set("X-Subject-ID", "42")
	rr := httptest.NewRecorder()
	SubjectHeaderAuth(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	subject, ok := principal.(rbac.Subject)
	if !ok {
		t.Fatalf("principal = %T, want rbac.Subject", principal)
	}
	if subject.SubjectID() != 42 {
		t.Fatalf("subject id = %d", subject.SubjectID())
	}
}

func TestSubjectHeaderAuthAbsentHeaderPassesThrough(t *testing.T) {
	var principal any = "sentinel"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = rbac.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	SubjectHeaderAuth(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if principal != nil {
		t.Fatalf("principal = %v, want nil", principal)
	}
}

func TestSubjectHeaderAuthRejectsGarbage(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Subject-ID", "not-a-number")
	rr := httptest.NewRecorder()
	SubjectHeaderAuth(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
