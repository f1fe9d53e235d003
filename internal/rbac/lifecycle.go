package rbac

import (
	"context"
	"log/slog"
)

// CreateRole validates, assigns a slug when none was supplied, and persists
// the role. The slug is immutable from this point on.
func (s *Service) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	if err := s.valid.RoleName(params.Name); err != nil {
		return Role{}, err
	}
	guard := s.guards.Resolve("", params.GuardName)
	if err := s.guards.Validate(guard); err != nil {
		return Role{}, err
	}

	slug := params.Slug
	if slug == "" {
		var err error
		slug, err = generateUniqueSlug(ctx, params.Name, kebabSlug, "-", s.store.RoleSlugExists)
		if err != nil {
			return Role{}, err
		}
	} else if taken, err := s.store.RoleSlugExists(ctx, slug); err != nil {
		return Role{}, err
	} else if taken {
		return Role{}, &ValidationError{Fields: map[string]string{"slug": "slug already in use"}}
	}

	role := Role{
		Name:        params.Name,
		Slug:        slug,
		GuardName:   guard,
		Description: params.Description,
		Color:       params.Color,
		Icon:        params.Icon,
		IsDefault:   params.IsDefault,
		IsActive:    params.IsActive == nil || *params.IsActive,
	}
	created, err := s.store.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("role created", slog.String("slug", created.Slug))
	if err := s.inv.apply(ctx, mutation{kind: mutRole, roleID: created.ID, roleSlug: created.Slug}); err != nil {
		return Role{}, err
	}
	return created, nil
}

// UpdateRole applies partial updates. An attempt to change the slug is
// silently reverted to the stored value.
func (s *Service) UpdateRole(ctx context.Context, id int64, params UpdateRoleParams) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if params.Name != nil {
		if err := s.valid.RoleName(*params.Name); err != nil {
			return Role{}, err
		}
		role.Name = *params.Name
	}
	// params.Slug deliberately ignored: slugs never change after creation.
	if params.GuardName != nil {
		if err := s.guards.Validate(*params.GuardName); err != nil {
			return Role{}, err
		}
		role.GuardName = *params.GuardName
	}
	if params.Description != nil {
		role.Description = *params.Description
	}
	if params.Color != nil {
		role.Color = *params.Color
	}
	if params.Icon != nil {
		role.Icon = *params.Icon
	}
	if params.IsDefault != nil {
		role.IsDefault = *params.IsDefault
	}
	if params.IsActive != nil {
		role.IsActive = *params.IsActive
	}

	updated, err := s.store.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	if err := s.inv.apply(ctx, mutation{kind: mutRole, roleID: updated.ID, roleSlug: updated.Slug}); err != nil {
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole soft-deletes the role. The store cascades the role_user and
// permission_role rows so no association dangles.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	// Fan-out is resolved before the delete removes the association rows
	// it is derived from.
	keys, err := s.inv.keysFor(ctx, mutation{kind: mutRole, roleID: role.ID, roleSlug: role.Slug})
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteRole(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", slog.String("slug", role.Slug))
	return s.cache.Forget(ctx, keys...)
}

// RestoreRole brings a soft-deleted role back.
func (s *Service) RestoreRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.store.RestoreRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if err := s.inv.apply(ctx, mutation{kind: mutRole, roleID: role.ID, roleSlug: role.Slug}); err != nil {
		return Role{}, err
	}
	return role, nil
}

// SetRoleStatus activates or deactivates a role, with the update fan-out.
func (s *Service) SetRoleStatus(ctx context.Context, id int64, active bool) (Role, error) {
	return s.UpdateRole(ctx, id, UpdateRoleParams{IsActive: &active})
}

// ToggleRoleStatus flips the role's active flag.
func (s *Service) ToggleRoleStatus(ctx context.Context, id int64) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	return s.SetRoleStatus(ctx, id, !role.IsActive)
}

// CreatePermission validates, assigns a dot-case slug when none was
// supplied, and persists the permission.
func (s *Service) CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error) {
	guard := s.guards.Resolve("", params.GuardName)
	if err := s.guards.Validate(guard); err != nil {
		return Permission{}, err
	}
	if params.GroupID != nil {
		if _, err := s.store.GetGroup(ctx, *params.GroupID); err != nil {
			return Permission{}, err
		}
	}

	slug := params.Slug
	if slug == "" {
		var err error
		slug, err = generateUniqueSlug(ctx, params.Name, dotSlug, ".", s.store.PermissionSlugExists)
		if err != nil {
			return Permission{}, err
		}
	} else {
		if err := s.valid.PermissionSlug(slug); err != nil {
			return Permission{}, err
		}
		if taken, err := s.store.PermissionSlugExists(ctx, slug); err != nil {
			return Permission{}, err
		} else if taken {
			return Permission{}, &ValidationError{Fields: map[string]string{"slug": "slug already in use"}}
		}
	}

	perm := Permission{
		Name:        params.Name,
		Slug:        slug,
		GuardName:   guard,
		Description: params.Description,
		GroupID:     params.GroupID,
		IsActive:    params.IsActive == nil || *params.IsActive,
	}
	created, err := s.store.CreatePermission(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	s.logger.Info("permission created", slog.String("slug", created.Slug))
	if err := s.inv.apply(ctx, mutation{kind: mutPermission, permID: created.ID, permSlug: created.Slug}); err != nil {
		return Permission{}, err
	}
	return created, nil
}

// UpdatePermission applies partial updates with the slug immutability rule.
func (s *Service) UpdatePermission(ctx context.Context, id int64, params UpdatePermissionParams) (Permission, error) {
	perm, err := s.store.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if params.Name != nil {
		perm.Name = *params.Name
	}
	// params.Slug deliberately ignored: slugs never change after creation.
	if params.GuardName != nil {
		if err := s.guards.Validate(*params.GuardName); err != nil {
			return Permission{}, err
		}
		perm.GuardName = *params.GuardName
	}
	if params.Description != nil {
		perm.Description = *params.Description
	}
	if params.ClearGroup {
		perm.GroupID = nil
	} else if params.GroupID != nil {
		if _, err := s.store.GetGroup(ctx, *params.GroupID); err != nil {
			return Permission{}, err
		}
		perm.GroupID = params.GroupID
	}
	if params.IsActive != nil {
		perm.IsActive = *params.IsActive
	}

	updated, err := s.store.UpdatePermission(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	if err := s.inv.apply(ctx, mutation{kind: mutPermission, permID: updated.ID, permSlug: updated.Slug}); err != nil {
		return Permission{}, err
	}
	return updated, nil
}

// DeletePermission soft-deletes the permission; the store cascades its
// permission_role and permission_user rows.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	perm, err := s.store.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	keys, err := s.inv.keysFor(ctx, mutation{kind: mutPermission, permID: perm.ID, permSlug: perm.Slug})
	if err != nil {
		return err
	}
	if err := s.store.SoftDeletePermission(ctx, id); err != nil {
		return err
	}
	s.logger.Info("permission deleted", slog.String("slug", perm.Slug))
	return s.cache.Forget(ctx, keys...)
}

// RestorePermission brings a soft-deleted permission back.
func (s *Service) RestorePermission(ctx context.Context, id int64) (Permission, error) {
	perm, err := s.store.RestorePermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if err := s.inv.apply(ctx, mutation{kind: mutPermission, permID: perm.ID, permSlug: perm.Slug}); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// SetPermissionStatus activates or deactivates a permission.
func (s *Service) SetPermissionStatus(ctx context.Context, id int64, active bool) (Permission, error) {
	return s.UpdatePermission(ctx, id, UpdatePermissionParams{IsActive: &active})
}

// TogglePermissionStatus flips the permission's active flag.
func (s *Service) TogglePermissionStatus(ctx context.Context, id int64) (Permission, error) {
	perm, err := s.store.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	return s.SetPermissionStatus(ctx, id, !perm.IsActive)
}

// CreateGroup assigns a kebab slug when none was supplied and persists the
// group.
func (s *Service) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	slug := params.Slug
	if slug == "" {
		var err error
		slug, err = generateUniqueSlug(ctx, params.Name, kebabSlug, "-", s.store.GroupSlugExists)
		if err != nil {
			return Group{}, err
		}
	} else if taken, err := s.store.GroupSlugExists(ctx, slug); err != nil {
		return Group{}, err
	} else if taken {
		return Group{}, &ValidationError{Fields: map[string]string{"slug": "slug already in use"}}
	}

	group := Group{
		Name:        params.Name,
		Slug:        slug,
		Description: params.Description,
		Color:       params.Color,
		Icon:        params.Icon,
		SortOrder:   params.SortOrder,
		IsActive:    params.IsActive == nil || *params.IsActive,
	}
	created, err := s.store.CreateGroup(ctx, group)
	if err != nil {
		return Group{}, err
	}
	s.logger.Info("group created", slog.String("slug", created.Slug))
	if err := s.inv.apply(ctx, mutation{kind: mutGroup, groupID: created.ID}); err != nil {
		return Group{}, err
	}
	return created, nil
}

// UpdateGroup applies partial updates with the slug immutability rule.
func (s *Service) UpdateGroup(ctx context.Context, id int64, params UpdateGroupParams) (Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if params.Name != nil {
		group.Name = *params.Name
	}
	// params.Slug deliberately ignored: slugs never change after creation.
	if params.Description != nil {
		group.Description = *params.Description
	}
	if params.Color != nil {
		group.Color = *params.Color
	}
	if params.Icon != nil {
		group.Icon = *params.Icon
	}
	if params.SortOrder != nil {
		group.SortOrder = *params.SortOrder
	}
	if params.IsActive != nil {
		group.IsActive = *params.IsActive
	}

	updated, err := s.store.UpdateGroup(ctx, group)
	if err != nil {
		return Group{}, err
	}
	if err := s.inv.apply(ctx, mutation{kind: mutGroup, groupID: updated.ID}); err != nil {
		return Group{}, err
	}
	return updated, nil
}

// DeleteGroup removes the group; the store nulls group_id on its
// permissions so none points at a missing group.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.logger.Info("group deleted", slog.String("slug", group.Slug))
	return s.inv.apply(ctx, mutation{kind: mutGroup, groupID: id})
}

// SetGroupStatus activates or deactivates a group. Deactivation suppresses
// the effective activity of every permission in the group.
func (s *Service) SetGroupStatus(ctx context.Context, id int64, active bool) (Group, error) {
	return s.UpdateGroup(ctx, id, UpdateGroupParams{IsActive: &active})
}

// ToggleGroupStatus flips the group's active flag.
func (s *Service) ToggleGroupStatus(ctx context.Context, id int64) (Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	return s.SetGroupStatus(ctx, id, !group.IsActive)
}

// ClearSubjectCache purges every cache entry derived from one subject.
func (s *Service) ClearSubjectCache(ctx context.Context, subjectID int64) error {
	return s.cache.Forget(ctx, subjectKeys(subjectID)...)
}

// ClearRoleCache purges a role's cached record, permission set, and slug
// lookup.
func (s *Service) ClearRoleCache(ctx context.Context, roleID int64) error {
	keys := roleKeys(roleID)
	if role, err := s.store.GetRole(ctx, roleID); err == nil {
		keys = append(keys, keyRoleSlug(role.Slug))
	}
	return s.cache.Forget(ctx, keys...)
}

// FlushCache clears the engine's entire cache namespace.
func (s *Service) FlushCache(ctx context.Context) error {
	return s.cache.Flush(ctx)
}
