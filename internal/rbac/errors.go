package rbac

import (
	"fmt"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// ErrNotFound indicates that the requested record does not exist. It wraps
// the transport sentinel so boundary code can map it without a type switch.
var ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)

// DenialKind classifies why an authorization check failed.
type DenialKind string

const (
	DenialUnauthenticated   DenialKind = "unauthenticated"
	DenialRole              DenialKind = "forbidden_role"
	DenialPermission        DenialKind = "forbidden_permission"
	DenialRoleOrPermission  DenialKind = "forbidden_role_or_permission"
	DenialInvalidGuard      DenialKind = "invalid_guard"
	DenialMissingCapability DenialKind = "missing_capability"
)

// UnauthorizedError is the typed denial surfaced to the boundary layer. It is
// an expected outcome of query operations, never swallowed and never treated
// as a system fault.
type UnauthorizedError struct {
	Message    string
	StatusCode int
	Kind       DenialKind
	Required   []string
	Guard      string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// HTTPStatus reports the status the denial maps to at the boundary.
func (e *UnauthorizedError) HTTPStatus() int {
	return e.StatusCode
}

// NewRoleDenial reports a missing role requirement.
func NewRoleDenial(required []string, guard string) *UnauthorizedError {
	return &UnauthorizedError{
		Message:    "required role not held",
		StatusCode: 403,
		Kind:       DenialRole,
		Required:   required,
		Guard:      guard,
	}
}

// NewPermissionDenial reports a missing permission requirement.
func NewPermissionDenial(required []string, guard string) *UnauthorizedError {
	return &UnauthorizedError{
		Message:    "required permission not held",
		StatusCode: 403,
		Kind:       DenialPermission,
		Required:   required,
		Guard:      guard,
	}
}

// NewRoleOrPermissionDenial reports that neither a role nor a permission
// requirement was met.
func NewRoleOrPermissionDenial(required []string, guard string) *UnauthorizedError {
	return &UnauthorizedError{
		Message:    "required role or permission not held",
		StatusCode: 403,
		Kind:       DenialRoleOrPermission,
		Required:   required,
		Guard:      guard,
	}
}

// NewUnauthenticated reports that no subject is attached to the request.
func NewUnauthenticated() *UnauthorizedError {
	return &UnauthorizedError{
		Message:    "authentication required",
		StatusCode: 401,
		Kind:       DenialUnauthenticated,
	}
}

// NewMissingCapability reports an integration fault: the principal type does
// not implement the Subject capability set.
func NewMissingCapability() *UnauthorizedError {
	return &UnauthorizedError{
		Message:    "principal does not implement the subject capability set",
		StatusCode: 500,
		Kind:       DenialMissingCapability,
	}
}

// GuardNotFoundError reports a guard name outside the recognized set. It is
// fatal to the operation that referenced it; there is no silent fallback.
type GuardNotFoundError struct {
	Guard string
}

func (e *GuardNotFoundError) Error() string {
	return fmt.Sprintf("rbac: guard %q is not available", e.Guard)
}

// ValidationError carries field-level messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "rbac: validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "rbac: validation failed: " + strings.Join(parts, "; ")
}
