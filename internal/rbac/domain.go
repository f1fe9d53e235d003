package rbac

import (
	"strings"
	"time"
)

// Role groups permissions under a named, guard-scoped grant.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	GuardName   string     `json:"guard_name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	IsDefault   bool       `json:"is_default"`
	IsActive    bool       `json:"is_active"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Permission is an atomic capability, optionally owned by a group.
type Permission struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	GuardName   string     `json:"guard_name"`
	Description string     `json:"description,omitempty"`
	GroupID     *int64     `json:"group_id,omitempty"`
	IsActive    bool       `json:"is_active"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FormattedName renders the slug for display, "posts.edit" becomes "Posts edit".
func (p Permission) FormattedName() string {
	s := strings.ReplaceAll(p.Slug, ".", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Group arranges permissions for administrative display. A group's active
// status feeds into the effective activity of its permissions.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subject is the actor roles and permissions attach to. Integrations
// implement it on their own user type; the engine only needs the key.
type Subject interface {
	SubjectID() int64
}

// SubjectID adapts a bare identifier to the Subject interface.
type SubjectID int64

// SubjectID implements Subject.
func (s SubjectID) SubjectID() int64 { return int64(s) }

// GuardNamed is implemented by subject types that carry their own guard,
// consulted by the guard resolver between the explicit parameter and the
// configured default.
type GuardNamed interface {
	GuardName() string
}

// RoleInput identifies a role for assignment: a Role value, a slug, a name,
// or a numeric id. Unresolvable inputs are dropped, not errors.
type RoleInput any

// PermissionInput identifies a permission the same way RoleInput does.
type PermissionInput any

// GroupedPermissions buckets an effective permission set under group names.
type GroupedPermissions map[string][]Permission

// PermissionsBySource splits a subject's active grants by origin.
type PermissionsBySource struct {
	Direct   []Permission `json:"direct"`
	ViaRoles []Permission `json:"via_roles"`
}

// CreateRoleParams carries attributes for role creation. Slug may be empty,
// in which case one is generated from the name.
type CreateRoleParams struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	GuardName   string `json:"guard_name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	IsDefault   bool   `json:"is_default"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateRoleParams carries partial updates. Slug changes are reverted to the
// stored value rather than applied.
type UpdateRoleParams struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	GuardName   *string `json:"guard_name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	IsDefault   *bool   `json:"is_default"`
	IsActive    *bool   `json:"is_active"`
}

// CreatePermissionParams carries attributes for permission creation.
type CreatePermissionParams struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	GuardName   string `json:"guard_name"`
	Description string `json:"description"`
	GroupID     *int64 `json:"group_id"`
	IsActive    *bool  `json:"is_active"`
}

// UpdatePermissionParams carries partial permission updates. ClearGroup
// detaches the permission from its group when no replacement is given.
type UpdatePermissionParams struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	GuardName   *string `json:"guard_name"`
	Description *string `json:"description"`
	GroupID     *int64  `json:"group_id"`
	ClearGroup  bool    `json:"clear_group"`
	IsActive    *bool   `json:"is_active"`
}

// CreateGroupParams carries attributes for group creation.
type CreateGroupParams struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateGroupParams carries partial group updates.
type UpdateGroupParams struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}
