package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

type principalKey struct{}

// WithPrincipal attaches the authenticated principal to the request context.
// The auth layer is expected to call this; the principal may be any type,
// but authorization requires it to implement Subject.
func WithPrincipal(ctx context.Context, principal any) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the attached principal, nil when absent.
func PrincipalFromContext(ctx context.Context) any {
	return ctx.Value(principalKey{})
}

// Middleware wires authorization gates for HTTP handlers. Requirement specs
// accept pipe- or comma-joined alternatives and an optional "guard:<name>"
// entry, e.g. "editor|admin,guard:api".
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireRole admits subjects holding at least one of the roles in spec.
func (m Middleware) RequireRole(spec string) func(http.Handler) http.Handler {
	return m.gate(func(ctx context.Context, subject Subject) error {
		candidates, guard := splitSpecWithGuard(spec)
		ok, err := m.Service.hasRole(ctx, subject, candidates, guard, false)
		if err != nil {
			return err
		}
		if !ok {
			return NewRoleDenial(candidates, guard)
		}
		return nil
	})
}

// RequirePermission admits subjects holding at least one of the permissions
// in spec.
func (m Middleware) RequirePermission(spec string) func(http.Handler) http.Handler {
	return m.gate(func(ctx context.Context, subject Subject) error {
		candidates, guard := splitSpecWithGuard(spec)
		ok, err := m.Service.HasAnyPermission(ctx, subject, candidates...)
		if err != nil {
			return err
		}
		if !ok {
			return NewPermissionDenial(candidates, guard)
		}
		return nil
	})
}

// RequireRoleOrPermission admits subjects matching either the role spec or
// the permission spec.
func (m Middleware) RequireRoleOrPermission(roleSpec, permSpec string) func(http.Handler) http.Handler {
	return m.gate(func(ctx context.Context, subject Subject) error {
		roleCandidates, guard := splitSpecWithGuard(roleSpec)
		ok, err := m.Service.hasRole(ctx, subject, roleCandidates, guard, false)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		permCandidates, _ := splitSpecWithGuard(permSpec)
		ok, err = m.Service.HasAnyPermission(ctx, subject, permCandidates...)
		if err != nil {
			return err
		}
		if !ok {
			return NewRoleOrPermissionDenial(append(roleCandidates, permCandidates...), guard)
		}
		return nil
	})
}

func (m Middleware) gate(check func(context.Context, Subject) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				m.deny(w, NewUnauthenticated())
				return
			}
			subject, ok := principal.(Subject)
			if !ok {
				m.deny(w, NewMissingCapability())
				return
			}
			if err := check(r.Context(), subject); err != nil {
				m.deny(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, err error) {
	var denial *UnauthorizedError
	if errors.As(err, &denial) {
		if denial.Kind == DenialMissingCapability && m.Logger != nil {
			m.Logger.Error("authorization gate misconfigured", slog.Any("error", err))
		}
		httpx.RespondError(w, denial)
		return
	}
	var guardErr *GuardNotFoundError
	if errors.As(err, &guardErr) {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", guardErr.Error())
		return
	}
	if m.Logger != nil {
		m.Logger.Error("authorization check failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
