package rbac

import "context"

// Store is the persistence contract the engine consumes. Every read takes an
// explicit includeInactive flag instead of an ambient scope, and association
// sync runs inside a single store-level transaction.
//
// Soft-deleted rows are invisible to all reads; Restore* brings them back.
type Store interface {
	// Roles.
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleBySlug(ctx context.Context, slug string, includeInactive bool) (Role, error)
	GetRoleByName(ctx context.Context, name string, includeInactive bool) (Role, error)
	ListRoles(ctx context.Context, includeInactive bool) ([]Role, error)
	DefaultRole(ctx context.Context) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	SoftDeleteRole(ctx context.Context, id int64) error
	RestoreRole(ctx context.Context, id int64) (Role, error)
	RoleSlugExists(ctx context.Context, slug string) (bool, error)

	// Permissions.
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionBySlug(ctx context.Context, slug string, includeInactive bool) (Permission, error)
	GetPermissionByName(ctx context.Context, name string, includeInactive bool) (Permission, error)
	ListPermissions(ctx context.Context, includeInactive bool) ([]Permission, error)
	CreatePermission(ctx context.Context, perm Permission) (Permission, error)
	UpdatePermission(ctx context.Context, perm Permission) (Permission, error)
	SoftDeletePermission(ctx context.Context, id int64) error
	RestorePermission(ctx context.Context, id int64) (Permission, error)
	PermissionSlugExists(ctx context.Context, slug string) (bool, error)

	// Groups.
	GetGroup(ctx context.Context, id int64) (Group, error)
	GetGroupBySlug(ctx context.Context, slug string, includeInactive bool) (Group, error)
	ListGroups(ctx context.Context, includeInactive bool) ([]Group, error)
	CreateGroup(ctx context.Context, group Group) (Group, error)
	UpdateGroup(ctx context.Context, group Group) (Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	GroupSlugExists(ctx context.Context, slug string) (bool, error)

	// Subject-role association.
	SubjectRoles(ctx context.Context, subjectID int64, includeInactive bool) ([]Role, error)
	AttachSubjectRoles(ctx context.Context, subjectID int64, roleIDs []int64) error
	DetachSubjectRoles(ctx context.Context, subjectID int64, roleIDs []int64) error
	SyncSubjectRoles(ctx context.Context, subjectID int64, roleIDs []int64) error

	// Subject-permission association (direct grants).
	SubjectDirectPermissions(ctx context.Context, subjectID int64, includeInactive bool) ([]Permission, error)
	AttachSubjectPermissions(ctx context.Context, subjectID int64, permIDs []int64) error
	DetachSubjectPermissions(ctx context.Context, subjectID int64, permIDs []int64) error
	SyncSubjectPermissions(ctx context.Context, subjectID int64, permIDs []int64) error

	// Role-permission association.
	RolePermissions(ctx context.Context, roleID int64, includeInactive bool) ([]Permission, error)
	AttachRolePermissions(ctx context.Context, roleID int64, permIDs []int64) error
	DetachRolePermissions(ctx context.Context, roleID int64, permIDs []int64) error
	SyncRolePermissions(ctx context.Context, roleID int64, permIDs []int64) error

	// Reverse lookups used by the cache invalidation fan-out.
	RoleSubjectIDs(ctx context.Context, roleID int64) ([]int64, error)
	PermissionRoleIDs(ctx context.Context, permID int64) ([]int64, error)
	PermissionSubjectIDs(ctx context.Context, permID int64) ([]int64, error)

	// DetachSubject removes every association a subject participates in.
	// Used on hard subject deletion only.
	DetachSubject(ctx context.Context, subjectID int64) error
}
