package rbac

import "fmt"

// Cache key scheme. Every key is additionally namespaced by the configured
// prefix inside Cache, so these stay collision-free against unrelated data
// in the same Redis database.

func keySubjectRoles(id int64) string        { return fmt.Sprintf("subject.%d.roles.active", id) }
func keySubjectRolesAll(id int64) string     { return fmt.Sprintf("subject.%d.roles.all", id) }
func keySubjectPermissions(id int64) string  { return fmt.Sprintf("subject.%d.permissions.active", id) }
func keySubjectPermissionsAll(id int64) string {
	return fmt.Sprintf("subject.%d.permissions.all", id)
}
func keySubjectDirectActive(id int64) string {
	return fmt.Sprintf("subject.%d.direct_permissions.active", id)
}
func keySubjectDirectAll(id int64) string {
	return fmt.Sprintf("subject.%d.direct_permissions.all", id)
}

func keyRole(id int64) string                  { return fmt.Sprintf("role.%d", id) }
func keyRolePermissionsActive(id int64) string { return fmt.Sprintf("role.%d.permissions.active", id) }
func keyRolePermissionsAll(id int64) string    { return fmt.Sprintf("role.%d.permissions.all", id) }
func keyRoleSlug(slug string) string           { return "role.slug." + slug }

const (
	keyRolesAllActive       = "roles.all.active"
	keyRolesAllWithInactive = "roles.all.with_inactive"
	keyRoleDefault          = "roles.default"

	keyPermissionsAllActive       = "permissions.all.active"
	keyPermissionsAllWithInactive = "permissions.all.with_inactive"

	keyGroupsAll = "groups.all"
)

func keyPermission(id int64) string        { return fmt.Sprintf("permission.%d", id) }
func keyPermissionSlug(slug string) string { return "permission.slug." + slug }

func keyGroup(id int64) string { return fmt.Sprintf("group.%d", id) }

// subjectKeys lists every cache entry derived from one subject's
// associations.
func subjectKeys(id int64) []string {
	return []string{
		keySubjectRoles(id),
		keySubjectRolesAll(id),
		keySubjectPermissions(id),
		keySubjectPermissionsAll(id),
		keySubjectDirectActive(id),
		keySubjectDirectAll(id),
	}
}

// roleKeys lists every cache entry derived from one role record and its
// permission set.
func roleKeys(id int64) []string {
	return []string{
		keyRole(id),
		keyRolePermissionsActive(id),
		keyRolePermissionsAll(id),
	}
}
