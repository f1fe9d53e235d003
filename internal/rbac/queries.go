package rbac

import (
	"context"
	"strconv"
)

// HasRole reports whether the subject holds at least one active role
// matching the spec. The spec may carry several candidates joined by "|" or
// ",". An explicit guard (optional trailing argument) overrides the
// subject's own guard and the configured default; guard matching is skipped
// entirely unless guard-strictness is enabled.
func (s *Service) HasRole(ctx context.Context, subject Subject, spec string, guard ...string) (bool, error) {
	explicit := ""
	if len(guard) > 0 {
		explicit = guard[0]
	}
	candidates := splitSpec(spec)
	return s.hasRole(ctx, subject, candidates, explicit, false)
}

// HasRoleIncludingInactive is HasRole without the active-status rule, for
// administrative views.
func (s *Service) HasRoleIncludingInactive(ctx context.Context, subject Subject, spec string, guard ...string) (bool, error) {
	explicit := ""
	if len(guard) > 0 {
		explicit = guard[0]
	}
	return s.hasRole(ctx, subject, splitSpec(spec), explicit, true)
}

func (s *Service) hasRole(ctx context.Context, subject Subject, candidates []string, explicit string, includeInactive bool) (bool, error) {
	if len(candidates) == 0 {
		return false, nil
	}
	if explicit != "" {
		if err := s.guards.Validate(explicit); err != nil {
			return false, err
		}
	}
	resolved := s.guards.ResolveSubject(explicit, subject)

	var (
		held []Role
		err  error
	)
	if includeInactive {
		held, err = s.subjectRolesAll(ctx, subject.SubjectID())
	} else {
		held, err = s.subjectRolesActive(ctx, subject.SubjectID())
	}
	if err != nil {
		return false, err
	}

	for _, candidate := range candidates {
		for _, role := range held {
			if !roleMatches(role, candidate) {
				continue
			}
			if !s.guards.Matches(role.GuardName, resolved) {
				continue
			}
			if !includeInactive && !s.status.roleActive(role) {
				continue
			}
			return true, nil
		}
	}
	return false, nil
}

// roleMatches compares a candidate against slug, name, then id. First match
// wins; the candidate set is a set, not a priority list.
func roleMatches(role Role, candidate string) bool {
	if role.Slug == candidate || role.Name == candidate {
		return true
	}
	id, err := strconv.ParseInt(candidate, 10, 64)
	return err == nil && role.ID == id
}

func permissionMatches(perm Permission, candidate string) bool {
	if perm.Slug == candidate || perm.Name == candidate {
		return true
	}
	id, err := strconv.ParseInt(candidate, 10, 64)
	return err == nil && perm.ID == id
}

// HasAnyRole reports whether any candidate role is held. Entries may be
// pipe- or comma-joined specs; a "guard:<name>" entry pins the guard.
func (s *Service) HasAnyRole(ctx context.Context, subject Subject, roles ...string) (bool, error) {
	candidates, guard := splitSpecWithGuard(roles...)
	return s.hasRole(ctx, subject, candidates, guard, false)
}

// HasAllRoles reports whether every candidate role is held.
func (s *Service) HasAllRoles(ctx context.Context, subject Subject, roles ...string) (bool, error) {
	candidates, guard := splitSpecWithGuard(roles...)
	if len(candidates) == 0 {
		return false, nil
	}
	for _, candidate := range candidates {
		ok, err := s.hasRole(ctx, subject, []string{candidate}, guard, false)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// HasExactRoles reports whether the subject's active role set equals the
// candidate set by identifier, ignoring order.
func (s *Service) HasExactRoles(ctx context.Context, subject Subject, roles ...string) (bool, error) {
	inputs := make([]RoleInput, 0)
	for _, spec := range splitSpec(roles...) {
		inputs = append(inputs, spec)
	}
	wanted, err := s.resolveRoles(ctx, inputs)
	if err != nil {
		return false, err
	}
	held, err := s.subjectRolesActive(ctx, subject.SubjectID())
	if err != nil {
		return false, err
	}
	if len(wanted) != len(held) {
		return false, nil
	}
	heldIDs := make(map[int64]struct{}, len(held))
	for _, role := range held {
		heldIDs[role.ID] = struct{}{}
	}
	for _, role := range wanted {
		if _, ok := heldIDs[role.ID]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// IsSuperAdmin reports whether the subject actively holds the configured
// super-admin role. An inactive super-admin role grants nothing.
func (s *Service) IsSuperAdmin(ctx context.Context, subject Subject) (bool, error) {
	slug := s.cfg.SuperAdminSlug
	if slug == "" {
		return false, nil
	}
	held, err := s.subjectRolesActive(ctx, subject.SubjectID())
	if err != nil {
		return false, err
	}
	for _, role := range held {
		if (role.Slug == slug || role.Name == slug) && role.IsActive {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether the subject holds the permission, directly
// or through an active role, applying the active-status and group-status
// rules. Super-admins pass unconditionally.
func (s *Service) HasPermission(ctx context.Context, subject Subject, spec string) (bool, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}
	perms, err := s.GetAllPermissions(ctx, subject)
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

// HasPermissionIncludingInactive matches against the unfiltered grant set.
func (s *Service) HasPermissionIncludingInactive(ctx context.Context, subject Subject, spec string) (bool, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}
	perms, err := s.GetAllPermissionsIncludingInactive(ctx, subject)
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

// HasDirectPermission checks only the subject's direct grants.
func (s *Service) HasDirectPermission(ctx context.Context, subject Subject, spec string) (bool, error) {
	perms, err := s.subjectDirectActive(ctx, subject.SubjectID())
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if permissionMatches(p, spec) && s.status.permissionActive(p) {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyDirectPermission reports whether at least one candidate is held as
// a direct grant. Role-derived grants and the super-admin bypass do not
// apply here.
func (s *Service) HasAnyDirectPermission(ctx context.Context, subject Subject, perms ...string) (bool, error) {
	held, err := s.subjectDirectActive(ctx, subject.SubjectID())
	if err != nil {
		return false, err
	}
	for _, candidate := range splitSpec(perms...) {
		for _, p := range held {
			if permissionMatches(p, candidate) && s.status.permissionActive(p) {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasAllDirectPermissions reports whether every candidate is held as a
// direct grant.
func (s *Service) HasAllDirectPermissions(ctx context.Context, subject Subject, perms ...string) (bool, error) {
	held, err := s.subjectDirectActive(ctx, subject.SubjectID())
	if err != nil {
		return false, err
	}
	for _, candidate := range splitSpec(perms...) {
		found := false
		for _, p := range held {
			if permissionMatches(p, candidate) && s.status.permissionActive(p) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

// HasPermissionViaRole checks only role-derived grants.
func (s *Service) HasPermissionViaRole(ctx context.Context, subject Subject, spec string) (bool, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}
	perms, err := s.GetPermissionsViaRoles(ctx, subject)
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

// HasAnyPermission reports whether at least one candidate is held.
func (s *Service) HasAnyPermission(ctx context.Context, subject Subject, perms ...string) (bool, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}
	for _, candidate := range splitSpec(perms...) {
		ok, err := s.HasPermission(ctx, subject, candidate)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether every candidate is held.
func (s *Service) HasAllPermissions(ctx context.Context, subject Subject, perms ...string) (bool, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}
	candidates := splitSpec(perms...)
	if len(candidates) == 0 {
		return true, nil
	}
	for _, candidate := range candidates {
		ok, err := s.HasPermission(ctx, subject, candidate)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// GetAllPermissions returns the subject's effective permission set: direct
// and active-role grants merged, de-duplicated by id, filtered by effective
// active status. Super-admins receive the full active catalog.
func (s *Service) GetAllPermissions(ctx context.Context, subject Subject) ([]Permission, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return nil, err
	}
	if super {
		return s.AllPermissions(ctx, false)
	}
	ids, err := s.subjectPermissionIDs(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, ids, true)
}

// GetAllPermissionsIncludingInactive returns the unfiltered grant set.
func (s *Service) GetAllPermissionsIncludingInactive(ctx context.Context, subject Subject) ([]Permission, error) {
	super, err := s.IsSuperAdmin(ctx, subject)
	if err != nil {
		return nil, err
	}
	if super {
		return s.AllPermissions(ctx, true)
	}
	ids, err := s.subjectPermissionIDsAll(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, ids, false)
}

// hydrate maps membership ids to current permission records through the
// catalog, optionally applying the effective-activity filter. Ids that no
// longer resolve (soft-deleted permissions) drop out.
func (s *Service) hydrate(ctx context.Context, ids []int64, filterActive bool) ([]Permission, error) {
	cat, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	index := cat.byID()
	out := make([]Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := index[id]
		if !ok {
			continue
		}
		if filterActive && !s.status.effectivePermissionActive(p, cat.groupStatus(p)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetDirectPermissions returns the subject's active direct grants.
func (s *Service) GetDirectPermissions(ctx context.Context, subject Subject) ([]Permission, error) {
	return s.subjectDirectActive(ctx, subject.SubjectID())
}

// GetDirectPermissionsIncludingInactive returns every direct grant.
func (s *Service) GetDirectPermissionsIncludingInactive(ctx context.Context, subject Subject) ([]Permission, error) {
	return s.subjectDirectAll(ctx, subject.SubjectID())
}

// GetPermissionsViaRoles returns the active permissions granted through the
// subject's active roles only.
func (s *Service) GetPermissionsViaRoles(ctx context.Context, subject Subject) ([]Permission, error) {
	roles, err := s.subjectRolesActive(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	ids, err := s.mergePermissionIDs(ctx, nil, roles)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, ids, true)
}

// GetPermissionsBySource splits the subject's active grants by how they were
// obtained. A permission held both ways appears in both buckets.
func (s *Service) GetPermissionsBySource(ctx context.Context, subject Subject) (PermissionsBySource, error) {
	direct, err := s.GetDirectPermissions(ctx, subject)
	if err != nil {
		return PermissionsBySource{}, err
	}
	viaRoles, err := s.GetPermissionsViaRoles(ctx, subject)
	if err != nil {
		return PermissionsBySource{}, err
	}
	return PermissionsBySource{Direct: direct, ViaRoles: viaRoles}, nil
}

// GetGroupedPermissions buckets the effective permission set by group name,
// with ungrouped permissions under "Uncategorized".
func (s *Service) GetGroupedPermissions(ctx context.Context, subject Subject) (GroupedPermissions, error) {
	perms, err := s.GetAllPermissions(ctx, subject)
	if err != nil {
		return nil, err
	}
	groups, err := s.AllGroups(ctx, true)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	grouped := make(GroupedPermissions)
	for _, p := range perms {
		name := "Uncategorized"
		if p.GroupID != nil {
			if n, ok := names[*p.GroupID]; ok {
				name = n
			}
		}
		grouped[name] = append(grouped[name], p)
	}
	return grouped, nil
}

// GetRoleNames returns the names of the subject's active roles.
func (s *Service) GetRoleNames(ctx context.Context, subject Subject) ([]string, error) {
	roles, err := s.subjectRolesActive(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	return pluckRoleNames(roles), nil
}

// GetRoleSlugs returns the slugs of the subject's active roles.
func (s *Service) GetRoleSlugs(ctx context.Context, subject Subject) ([]string, error) {
	roles, err := s.subjectRolesActive(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	return pluckRoleSlugs(roles), nil
}

// GetAllRoleSlugs includes inactive roles.
func (s *Service) GetAllRoleSlugs(ctx context.Context, subject Subject) ([]string, error) {
	roles, err := s.subjectRolesAll(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	return pluckRoleSlugs(roles), nil
}

// GetInactiveRoles returns held roles that are currently inactive.
func (s *Service) GetInactiveRoles(ctx context.Context, subject Subject) ([]Role, error) {
	roles, err := s.subjectRolesAll(ctx, subject.SubjectID())
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0)
	for _, role := range roles {
		if !role.IsActive {
			out = append(out, role)
		}
	}
	return out, nil
}

// HasInactiveRoles reports whether any held role is inactive.
func (s *Service) HasInactiveRoles(ctx context.Context, subject Subject) (bool, error) {
	roles, err := s.GetInactiveRoles(ctx, subject)
	if err != nil {
		return false, err
	}
	return len(roles) > 0, nil
}

func pluckRoleNames(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Name
	}
	return out
}

func pluckRoleSlugs(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Slug
	}
	return out
}
