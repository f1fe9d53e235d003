package rbac

import (
	"context"
	"log/slog"
)

// AssignRoles grants roles to the subject, keeping existing assignments.
// Inputs resolve against the store including inactive roles; unknown
// identifiers are dropped. The association write lands before any cache
// invalidation.
func (s *Service) AssignRoles(ctx context.Context, subject Subject, roles ...RoleInput) error {
	resolved, err := s.resolveRoles(ctx, roles)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	subjectID := subject.SubjectID()
	if err := s.store.AttachSubjectRoles(ctx, subjectID, roleIDs(resolved)); err != nil {
		return err
	}
	s.logger.Info("roles assigned",
		slog.Int64("subject_id", subjectID),
		slog.Any("role_slugs", pluckRoleSlugs(resolved)))
	return s.inv.apply(ctx, mutation{kind: mutSubjectRoles, subjectID: subjectID})
}

// RemoveRoles detaches roles from the subject.
func (s *Service) RemoveRoles(ctx context.Context, subject Subject, roles ...RoleInput) error {
	resolved, err := s.resolveRoles(ctx, roles)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	subjectID := subject.SubjectID()
	if err := s.store.DetachSubjectRoles(ctx, subjectID, roleIDs(resolved)); err != nil {
		return err
	}
	s.logger.Info("roles removed",
		slog.Int64("subject_id", subjectID),
		slog.Any("role_slugs", pluckRoleSlugs(resolved)))
	return s.inv.apply(ctx, mutation{kind: mutSubjectRoles, subjectID: subjectID})
}

// SyncRoles replaces the subject's role set with the resolved target set.
// The diff is applied by the store inside one transaction.
func (s *Service) SyncRoles(ctx context.Context, subject Subject, roles ...RoleInput) error {
	resolved, err := s.resolveRoles(ctx, roles)
	if err != nil {
		return err
	}
	subjectID := subject.SubjectID()
	if err := s.store.SyncSubjectRoles(ctx, subjectID, roleIDs(resolved)); err != nil {
		return err
	}
	return s.inv.apply(ctx, mutation{kind: mutSubjectRoles, subjectID: subjectID})
}

// GivePermissions grants direct permissions to the subject.
func (s *Service) GivePermissions(ctx context.Context, subject Subject, perms ...PermissionInput) error {
	resolved, err := s.resolvePermissions(ctx, perms)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	subjectID := subject.SubjectID()
	if err := s.store.AttachSubjectPermissions(ctx, subjectID, permissionIDs(resolved)); err != nil {
		return err
	}
	s.logger.Info("permissions granted", slog.Int64("subject_id", subjectID), slog.Int("count", len(resolved)))
	return s.inv.apply(ctx, mutation{kind: mutSubjectPermissions, subjectID: subjectID})
}

// RevokePermissions removes direct permissions from the subject.
func (s *Service) RevokePermissions(ctx context.Context, subject Subject, perms ...PermissionInput) error {
	resolved, err := s.resolvePermissions(ctx, perms)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	subjectID := subject.SubjectID()
	if err := s.store.DetachSubjectPermissions(ctx, subjectID, permissionIDs(resolved)); err != nil {
		return err
	}
	s.logger.Info("permissions revoked", slog.Int64("subject_id", subjectID), slog.Int("count", len(resolved)))
	return s.inv.apply(ctx, mutation{kind: mutSubjectPermissions, subjectID: subjectID})
}

// SyncPermissions replaces the subject's direct grants with the target set.
func (s *Service) SyncPermissions(ctx context.Context, subject Subject, perms ...PermissionInput) error {
	resolved, err := s.resolvePermissions(ctx, perms)
	if err != nil {
		return err
	}
	subjectID := subject.SubjectID()
	if err := s.store.SyncSubjectPermissions(ctx, subjectID, permissionIDs(resolved)); err != nil {
		return err
	}
	return s.inv.apply(ctx, mutation{kind: mutSubjectPermissions, subjectID: subjectID})
}

// RevokeAllPermissions clears every direct grant from the subject. Grants
// obtained through roles are untouched.
func (s *Service) RevokeAllPermissions(ctx context.Context, subject Subject) error {
	return s.SyncPermissions(ctx, subject)
}

// GiveRolePermissions grants permissions to a role, keeping existing grants.
// Fan-out reaches the role's permission set and every subject holding it.
func (s *Service) GiveRolePermissions(ctx context.Context, role RoleInput, perms ...PermissionInput) error {
	target, resolved, err := s.resolveRoleAndPermissions(ctx, role, perms)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	if err := s.store.AttachRolePermissions(ctx, target.ID, permissionIDs(resolved)); err != nil {
		return err
	}
	s.logger.Info("role permissions granted", slog.String("role", target.Slug), slog.Int("count", len(resolved)))
	return s.inv.apply(ctx, mutation{kind: mutRolePermissions, roleID: target.ID})
}

// RevokeRolePermissions removes permissions from a role.
func (s *Service) RevokeRolePermissions(ctx context.Context, role RoleInput, perms ...PermissionInput) error {
	target, resolved, err := s.resolveRoleAndPermissions(ctx, role, perms)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return nil
	}
	if err := s.store.DetachRolePermissions(ctx, target.ID, permissionIDs(resolved)); err != nil {
		return err
	}
	s.logger.Info("role permissions revoked", slog.String("role", target.Slug), slog.Int("count", len(resolved)))
	return s.inv.apply(ctx, mutation{kind: mutRolePermissions, roleID: target.ID})
}

// SyncRolePermissions replaces the role's permission set with the target
// set in one store transaction.
func (s *Service) SyncRolePermissions(ctx context.Context, role RoleInput, perms ...PermissionInput) error {
	target, resolved, err := s.resolveRoleAndPermissions(ctx, role, perms)
	if err != nil {
		return err
	}
	if err := s.store.SyncRolePermissions(ctx, target.ID, permissionIDs(resolved)); err != nil {
		return err
	}
	return s.inv.apply(ctx, mutation{kind: mutRolePermissions, roleID: target.ID})
}

func (s *Service) resolveRoleAndPermissions(ctx context.Context, role RoleInput, perms []PermissionInput) (Role, []Permission, error) {
	targets, err := s.resolveRoles(ctx, []RoleInput{role})
	if err != nil {
		return Role{}, nil, err
	}
	if len(targets) == 0 {
		return Role{}, nil, ErrNotFound
	}
	resolved, err := s.resolvePermissions(ctx, perms)
	if err != nil {
		return Role{}, nil, err
	}
	return targets[0], resolved, nil
}

// RoleHasPermission reports whether the role's active permission set
// contains a slug or name match.
func (s *Service) RoleHasPermission(ctx context.Context, role RoleInput, spec string) (bool, error) {
	targets, err := s.resolveRoles(ctx, []RoleInput{role})
	if err != nil {
		return false, err
	}
	if len(targets) == 0 {
		return false, ErrNotFound
	}
	perms, err := s.rolePermissionsActive(ctx, targets[0].ID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if permissionMatches(p, spec) {
			return true, nil
		}
	}
	return false, nil
}

// RolePermissionSet returns a role's permission set from cache.
func (s *Service) RolePermissionSet(ctx context.Context, role RoleInput, includeInactive bool) ([]Permission, error) {
	targets, err := s.resolveRoles(ctx, []RoleInput{role})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNotFound
	}
	if includeInactive {
		return s.rolePermissionsAll(ctx, targets[0].ID)
	}
	return s.rolePermissionsActive(ctx, targets[0].ID)
}

// DeleteSubject hard-deletes a subject's footprint: every role and direct
// permission association is detached and its cache entries purged. Soft
// subject deletion keeps associations and is not routed through here.
func (s *Service) DeleteSubject(ctx context.Context, subject Subject) error {
	subjectID := subject.SubjectID()
	if err := s.store.DetachSubject(ctx, subjectID); err != nil {
		return err
	}
	s.logger.Info("subject detached", slog.Int64("subject_id", subjectID))
	return s.inv.apply(ctx, mutation{kind: mutSubjectDeleted, subjectID: subjectID})
}
