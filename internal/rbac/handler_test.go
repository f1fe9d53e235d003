package rbac

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, store Store) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, newTestService(t, store, DefaultConfig()))
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func TestRoleCRUDOverHTTP(t *testing.T) {
	store := newMockStore()
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "Content Editor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Role
	decodeBody(t, rec, &created)
	assert.Equal(t, "content-editor", created.Slug)

	rec = doJSON(t, router, http.MethodGet, "/roles/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/roles/1", map[string]any{"name": "Senior Editor", "slug": "hacked"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Role
	decodeBody(t, rec, &updated)
	assert.Equal(t, "Senior Editor", updated.Name)
	assert.Equal(t, "content-editor", updated.Slug)

	rec = doJSON(t, router, http.MethodGet, "/roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Roles []Role `json:"roles"`
	}
	decodeBody(t, rec, &listing)
	assert.Len(t, listing.Roles, 1)

	rec = doJSON(t, router, http.MethodDelete, "/roles/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/roles/1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/roles/1/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRoleHTTPValidation(t *testing.T) {
	store := newMockStore()
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "Bad Name!"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/roles", map[string]any{"name": "Editor", "guard_name": "bogus"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/roles/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleStatusTogglingOverHTTP(t *testing.T) {
	store := newMockStore()
	fixture(store)
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodPost, "/roles/1/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var role Role
	decodeBody(t, rec, &role)
	assert.False(t, role.IsActive)

	rec = doJSON(t, router, http.MethodPost, "/roles/1/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &role)
	assert.True(t, role.IsActive)
}

func TestRolePermissionEndpoints(t *testing.T) {
	store := newMockStore()
	editor, _, _, _, export := fixture(store)
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodGet, "/roles/1/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Permissions []Permission `json:"permissions"`
	}
	decodeBody(t, rec, &listing)
	assert.Len(t, listing.Permissions, 2)

	rec = doJSON(t, router, http.MethodPost, "/roles/1/permissions/attach", map[string]any{
		"permissions": []string{"posts.export"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, store.rolePerms[editor.ID], export.ID)

	rec = doJSON(t, router, http.MethodPut, "/roles/1/permissions", map[string]any{
		"permissions": []string{"posts.edit"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, store.rolePerms[editor.ID], 1)
}

func TestSubjectEndpoints(t *testing.T) {
	store := newMockStore()
	fixture(store)
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodGet, "/subjects/1/roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roleListing struct {
		Roles []Role `json:"roles"`
	}
	decodeBody(t, rec, &roleListing)
	assert.Len(t, roleListing.Roles, 1)

	rec = doJSON(t, router, http.MethodGet, "/subjects/1/roles?include_inactive=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &roleListing)
	assert.Len(t, roleListing.Roles, 2)

	rec = doJSON(t, router, http.MethodGet, "/subjects/1/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var permListing struct {
		Permissions []Permission `json:"permissions"`
	}
	decodeBody(t, rec, &permListing)
	assert.Len(t, permListing.Permissions, 2)

	rec = doJSON(t, router, http.MethodPost, "/subjects/4/roles/attach", map[string]any{
		"roles": []string{"editor"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, store.subjectRoles[4], 1)

	rec = doJSON(t, router, http.MethodDelete, "/subjects/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.subjectRoles[1])
}

func TestCheckEndpoint(t *testing.T) {
	store := newMockStore()
	fixture(store)
	router := newTestRouter(t, store)

	cases := []struct {
		query string
		want  bool
	}{
		{"role=editor", true},
		{"role=admin", false},
		{"permission=posts.edit", true},
		{"permission=posts.export", false},
		{"role=admin&permission=posts.edit", true},
	}
	for _, tc := range cases {
		rec := doJSON(t, router, http.MethodGet, "/subjects/1/check?"+tc.query, nil)
		require.Equal(t, http.StatusOK, rec.Code, tc.query)
		var result struct {
			Allowed bool `json:"allowed"`
		}
		decodeBody(t, rec, &result)
		assert.Equal(t, tc.want, result.Allowed, tc.query)
	}

	rec := doJSON(t, router, http.MethodGet, "/subjects/1/check", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/subjects/1/check?role=editor&guard=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGroupEndpoints(t *testing.T) {
	store := newMockStore()
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodPost, "/groups", map[string]any{"name": "Content", "sort_order": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	var group Group
	decodeBody(t, rec, &group)
	assert.Equal(t, "content", group.Slug)

	rec = doJSON(t, router, http.MethodPost, "/permissions", map[string]any{
		"name": "Edit Posts", "group_id": group.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/groups/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/permissions/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var perm Permission
	decodeBody(t, rec, &perm)
	assert.Nil(t, perm.GroupID)
}

func TestCacheEndpoints(t *testing.T) {
	store := newMockStore()
	fixture(store)
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodDelete, "/cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/cache/subjects/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/cache/roles/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
