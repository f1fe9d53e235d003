package rbac

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateRequest(principal any) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	if principal != nil {
		req = req.WithContext(WithPrincipal(req.Context(), principal))
	}
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestMiddleware(t *testing.T, store Store) Middleware {
	t.Helper()
	return Middleware{
		Service: newTestService(t, store, DefaultConfig()),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRequireRoleAdmits(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	rec := httptest.NewRecorder()
	mw.RequireRole("editor")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleDenies(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	rec := httptest.NewRecorder()
	mw.RequireRole("admin")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestRequireRoleUnauthenticated(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	rec := httptest.NewRecorder()
	mw.RequireRole("editor")(okHandler()).ServeHTTP(rec, newGateRequest(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleNonSubjectPrincipal(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	// A principal that cannot answer authorization questions is a wiring
	// bug, not a client error.
	rec := httptest.NewRecorder()
	mw.RequireRole("editor")(okHandler()).ServeHTTP(rec, newGateRequest("session-token"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	rec := httptest.NewRecorder()
	mw.RequirePermission("posts.edit")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequirePermission("posts.export")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionPipeSpec(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	rec := httptest.NewRecorder()
	mw.RequirePermission("posts.export|posts.edit")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleOrPermission(t *testing.T) {
	store := newMockStore()
	fixture(store)
	direct := store.addPermission(Permission{Name: "Manage Tags", Slug: "tags.manage", GuardName: "web", IsActive: true})
	store.subjectPerms[3] = []int64{direct.ID}
	mw := newTestMiddleware(t, store)

	// Subject 3 holds no role, only the direct permission.
	rec := httptest.NewRecorder()
	mw.RequireRoleOrPermission("editor", "tags.manage")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(3)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireRoleOrPermission("editor", "posts.export")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(3)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleGuardSpec(t *testing.T) {
	store := newMockStore()
	fixture(store)
	mw := newTestMiddleware(t, store)

	// An unknown guard in the spec is reported as a server error.
	rec := httptest.NewRecorder()
	mw.RequireRole("editor,guard:bogus")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireRole("editor,guard:web")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(1)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSuperAdminPassesPermissionGate(t *testing.T) {
	store := newMockStore()
	fixture(store)
	super := store.addRole(Role{Name: "Super Admin", Slug: "super-admin", GuardName: "web", IsActive: true})
	store.subjectRoles[9] = []int64{super.ID}
	mw := newTestMiddleware(t, store)

	rec := httptest.NewRecorder()
	mw.RequirePermission("anything.whatsoever")(okHandler()).ServeHTTP(rec, newGateRequest(SubjectID(9)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), SubjectID(7))
	principal := PrincipalFromContext(ctx)
	subject, ok := principal.(Subject)
	require.True(t, ok)
	assert.Equal(t, int64(7), subject.SubjectID())

	assert.Nil(t, PrincipalFromContext(context.Background()))
}
