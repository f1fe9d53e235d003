package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// mutationKind enumerates every write that can leave derived cache entries
// stale. The fan-out for each kind is declared in one place (keysFor) and
// derived from the association graph, so a new cached key must be added to an
// explicit dependency set here rather than remembered at each call site.
type mutationKind int

const (
	mutRole mutationKind = iota
	mutPermission
	mutGroup
	mutRolePermissions
	mutSubjectRoles
	mutSubjectPermissions
	mutSubjectDeleted
)

// mutation describes a single committed write. Only the fields relevant to
// its kind are set.
type mutation struct {
	kind      mutationKind
	roleID    int64
	roleSlug  string
	permID    int64
	permSlug  string
	groupID   int64
	subjectID int64
}

// invalidator purges exactly the cache entries whose values are functions of
// a mutated entity or association. It always runs after the store write, so
// a crash in between leaves a stale-but-safe entry that expires at TTL.
type invalidator struct {
	store  Store
	cache  *Cache
	logger *slog.Logger
}

// apply resolves the fan-out key set for the mutation and forgets it.
func (iv invalidator) apply(ctx context.Context, m mutation) error {
	keys, err := iv.keysFor(ctx, m)
	if err != nil {
		return fmt.Errorf("rbac: resolve invalidation set: %w", err)
	}
	if err := iv.cache.Forget(ctx, keys...); err != nil {
		// Failing to forget is the one cache error that may not degrade
		// silently: a stale grant is the failure mode this layer exists
		// to prevent.
		return fmt.Errorf("rbac: invalidate cache: %w", err)
	}
	iv.logger.Debug("cache invalidated", slog.Int("keys", len(keys)))
	return nil
}

func (iv invalidator) keysFor(ctx context.Context, m mutation) ([]string, error) {
	switch m.kind {
	case mutRole:
		// The role record, its permission set, the catalog entries, its
		// slug lookup, and every subject currently holding it.
		keys := append(roleKeys(m.roleID),
			keyRoleSlug(m.roleSlug),
			keyRolesAllActive,
			keyRolesAllWithInactive,
			keyRoleDefault,
		)
		subjects, err := iv.store.RoleSubjectIDs(ctx, m.roleID)
		if err != nil {
			return nil, err
		}
		for _, id := range subjects {
			keys = append(keys, subjectKeys(id)...)
		}
		return keys, nil

	case mutPermission:
		// The permission record, its slug lookup, the permission catalog
		// (which embeds status and group-status context), the permission
		// set of every role holding it, and every direct holder.
		keys := []string{
			keyPermission(m.permID),
			keyPermissionSlug(m.permSlug),
			keyPermissionsAllActive,
			keyPermissionsAllWithInactive,
		}
		roleIDs, err := iv.store.PermissionRoleIDs(ctx, m.permID)
		if err != nil {
			return nil, err
		}
		for _, id := range roleIDs {
			keys = append(keys, keyRolePermissionsActive(id), keyRolePermissionsAll(id))
		}
		subjectIDs, err := iv.store.PermissionSubjectIDs(ctx, m.permID)
		if err != nil {
			return nil, err
		}
		for _, id := range subjectIDs {
			keys = append(keys,
				keySubjectDirectActive(id),
				keySubjectDirectAll(id),
				keySubjectPermissions(id),
				keySubjectPermissionsAll(id),
			)
		}
		return keys, nil

	case mutGroup:
		// Group status flows into permission effective-activity, which the
		// cached permission catalog embeds.
		return []string{
			keyGroup(m.groupID),
			keyGroupsAll,
			keyPermissionsAllActive,
			keyPermissionsAllWithInactive,
		}, nil

	case mutRolePermissions:
		// The role's permission set plus the permission-set entries of
		// every subject holding the role.
		keys := []string{
			keyRolePermissionsActive(m.roleID),
			keyRolePermissionsAll(m.roleID),
		}
		subjects, err := iv.store.RoleSubjectIDs(ctx, m.roleID)
		if err != nil {
			return nil, err
		}
		for _, id := range subjects {
			keys = append(keys,
				keySubjectPermissions(id),
				keySubjectPermissionsAll(id),
			)
		}
		return keys, nil

	case mutSubjectRoles:
		// Only the subject's own role and permission sets change.
		return []string{
			keySubjectRoles(m.subjectID),
			keySubjectRolesAll(m.subjectID),
			keySubjectPermissions(m.subjectID),
			keySubjectPermissionsAll(m.subjectID),
		}, nil

	case mutSubjectPermissions:
		// Only the subject's own permission sets change.
		return []string{
			keySubjectDirectActive(m.subjectID),
			keySubjectDirectAll(m.subjectID),
			keySubjectPermissions(m.subjectID),
			keySubjectPermissionsAll(m.subjectID),
		}, nil

	case mutSubjectDeleted:
		return subjectKeys(m.subjectID), nil
	}
	return nil, fmt.Errorf("rbac: unknown mutation kind %d", m.kind)
}
