package rbac

// statusFilter holds the active/inactive predicates. Pure logic, no I/O: the
// group-status context is supplied by the caller.
type statusFilter struct {
	filterInactive   bool
	checkRoleStatus  bool
	checkGroupStatus bool
}

func newStatusFilter(cfg Config) statusFilter {
	return statusFilter{
		filterInactive:   cfg.FilterInactive,
		checkRoleStatus:  cfg.CheckRoleStatus,
		checkGroupStatus: cfg.CheckGroupStatus,
	}
}

// roleActive reports whether a role counts as active for membership checks.
// When role-status checking is disabled every role passes.
func (f statusFilter) roleActive(role Role) bool {
	return !f.checkRoleStatus || role.IsActive
}

// permissionActive reports the permission's own status subject to the
// filter-inactive toggle.
func (f statusFilter) permissionActive(perm Permission) bool {
	return !f.filterInactive || perm.IsActive
}

// effectivePermissionActive folds the owning group's status in: a permission
// is effective only while it is active and its group (if any) is active.
// groupActive receives the group's status, or nil when the permission has no
// group or the group could not be resolved.
func (f statusFilter) effectivePermissionActive(perm Permission, groupActive *bool) bool {
	if !f.permissionActive(perm) {
		return false
	}
	if !f.checkGroupStatus || perm.GroupID == nil {
		return true
	}
	return groupActive != nil && *groupActive
}
