package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestCreateRoleGeneratesSlug(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Content Editor"})
	require.NoError(t, err)
	assert.Equal(t, "content-editor", role.Slug)
	assert.Equal(t, "web", role.GuardName)
	assert.True(t, role.IsActive)

	// Same name again: numeric suffix, no collision.
	again, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Content Editor"})
	require.NoError(t, err)
	assert.Equal(t, "content-editor-2", again.Slug)
}

func TestCreateRoleExplicitSlugCollision(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Editor", Slug: "editor"})
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, CreateRoleParams{Name: "Other Editor", Slug: "editor"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "slug")
}

func TestCreateRoleValidation(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, CreateRoleParams{Name: "No! Punctuation?"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateRole(ctx, CreateRoleParams{Name: "Editor", GuardName: "bogus"})
	var guardErr *GuardNotFoundError
	require.ErrorAs(t, err, &guardErr)
}

func TestUpdateRoleIgnoresSlugChange(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Editor"})
	require.NoError(t, err)

	updated, err := svc.UpdateRole(ctx, role.ID, UpdateRoleParams{
		Name: strptr("Senior Editor"),
		Slug: strptr("renamed-editor"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Senior Editor", updated.Name)
	assert.Equal(t, "editor", updated.Slug, "slug must never change after creation")
}

func TestDeleteRoleReservesSlugUntilRestore(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Editor"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRole(ctx, role.ID))
	_, err = svc.FindRole(ctx, "editor")
	assert.ErrorIs(t, err, ErrNotFound)

	// The slug stays reserved while the role is soft-deleted.
	fresh, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Editor"})
	require.NoError(t, err)
	assert.Equal(t, "editor-2", fresh.Slug)

	restored, err := svc.RestoreRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "editor", restored.Slug)
}

func TestDeleteRoleDropsDerivedGrants(t *testing.T) {
	store := newMockStore()
	editor, _, _, _, _ := fixture(store)
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()
	subject := SubjectID(1)

	ok, err := svc.HasPermission(ctx, subject, "posts.edit")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.DeleteRole(ctx, editor.ID))

	ok, err = svc.HasPermission(ctx, subject, "posts.edit")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasRole(ctx, subject, "editor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToggleRoleStatus(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Name: "Editor"})
	require.NoError(t, err)
	require.True(t, role.IsActive)

	toggled, err := svc.ToggleRoleStatus(ctx, role.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	toggled, err = svc.ToggleRoleStatus(ctx, role.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)
}

func TestCreatePermissionSlugAndGroup(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, CreateGroupParams{Name: "Content"})
	require.NoError(t, err)
	assert.Equal(t, "content", group.Slug)

	perm, err := svc.CreatePermission(ctx, CreatePermissionParams{Name: "Edit Posts", GroupID: &group.ID})
	require.NoError(t, err)
	assert.Equal(t, "edit.posts", perm.Slug)
	require.NotNil(t, perm.GroupID)
	assert.Equal(t, group.ID, *perm.GroupID)

	again, err := svc.CreatePermission(ctx, CreatePermissionParams{Name: "Edit Posts"})
	require.NoError(t, err)
	assert.Equal(t, "edit.posts.2", again.Slug)
}

func TestCreatePermissionRejectsBadSlugAndGroup(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	_, err := svc.CreatePermission(ctx, CreatePermissionParams{Name: "Edit", Slug: "Edit Posts!"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	missing := int64(99)
	_, err = svc.CreatePermission(ctx, CreatePermissionParams{Name: "Edit", GroupID: &missing})
	require.Error(t, err)
}

func TestUpdatePermissionClearGroup(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, CreateGroupParams{Name: "Content"})
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, CreatePermissionParams{Name: "Edit Posts", GroupID: &group.ID})
	require.NoError(t, err)

	updated, err := svc.UpdatePermission(ctx, perm.ID, UpdatePermissionParams{ClearGroup: true})
	require.NoError(t, err)
	assert.Nil(t, updated.GroupID)
}

func TestDeleteGroupOrphansPermissions(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, CreateGroupParams{Name: "Content"})
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, CreatePermissionParams{Name: "Edit Posts", GroupID: &group.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteGroup(ctx, group.ID))

	stored, err := svc.FindPermission(ctx, perm.Slug)
	require.NoError(t, err)
	assert.Nil(t, stored.GroupID)
}

func TestClearAndFlushCache(t *testing.T) {
	store := newMockStore()
	fixture(store)
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()
	subject := SubjectID(1)

	_, err := svc.GetAllPermissions(ctx, subject)
	require.NoError(t, err)
	warm := store.calls["SubjectRoles"]

	require.NoError(t, svc.ClearSubjectCache(ctx, 1))

	_, err = svc.GetAllPermissions(ctx, subject)
	require.NoError(t, err)
	assert.Greater(t, store.calls["SubjectRoles"], warm, "cleared cache must recompute")

	require.NoError(t, svc.FlushCache(ctx))
	before := store.calls["ListPermissions"]
	_, err = svc.AllPermissions(ctx, false)
	require.NoError(t, err)
	assert.Greater(t, store.calls["ListPermissions"], before)
}

func TestFindRoleAndPermissionLookup(t *testing.T) {
	store := newMockStore()
	editor, _, edit, _, _ := fixture(store)
	svc := newTestService(t, store, DefaultConfig())
	ctx := context.Background()

	bySlug, err := svc.FindRole(ctx, "editor")
	require.NoError(t, err)
	assert.Equal(t, editor.ID, bySlug.ID)

	byName, err := svc.FindRole(ctx, "Editor")
	require.NoError(t, err)
	assert.Equal(t, editor.ID, byName.ID)

	byID, err := svc.FindRole(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, editor.ID, byID.ID)

	_, err = svc.FindRole(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	perm, err := svc.FindPermission(ctx, "posts.edit")
	require.NoError(t, err)
	assert.Equal(t, edit.ID, perm.ID)
}
