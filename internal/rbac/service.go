package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// Service is the permission-resolution engine. It computes effective role
// and permission sets for subjects, answers membership queries, and keeps
// the cache coherent across every mutation.
type Service struct {
	store  Store
	cache  *Cache
	cfg    Config
	status statusFilter
	guards guardResolver
	valid  *inputValidator
	inv    invalidator
	logger *slog.Logger
}

// NewService wires the engine. The store and cache are the only
// collaborators; all tunables arrive through cfg.
func NewService(store Store, cache *Cache, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac: store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	valid, err := newInputValidator(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		status: newStatusFilter(cfg),
		guards: newGuardResolver(cfg),
		valid:  valid,
		inv:    invalidator{store: store, cache: cache, logger: logger},
		logger: logger,
	}, nil
}

// permissionCatalog is the cached read model for permission status lookups:
// every permission (including inactive, excluding soft-deleted) together
// with the active flag of each group. Group mutations invalidate it because
// group status feeds permission effective-activity.
type permissionCatalog struct {
	Permissions []Permission   `json:"permissions"`
	GroupActive map[int64]bool `json:"group_active"`
}

func (c permissionCatalog) byID() map[int64]Permission {
	m := make(map[int64]Permission, len(c.Permissions))
	for _, p := range c.Permissions {
		m[p.ID] = p
	}
	return m
}

func (c permissionCatalog) groupStatus(p Permission) *bool {
	if p.GroupID == nil {
		return nil
	}
	active, ok := c.GroupActive[*p.GroupID]
	if !ok {
		return nil
	}
	return &active
}

func (s *Service) catalog(ctx context.Context) (permissionCatalog, error) {
	return remember(ctx, s.cache, keyPermissionsAllWithInactive, func(ctx context.Context) (permissionCatalog, error) {
		perms, err := s.store.ListPermissions(ctx, true)
		if err != nil {
			return permissionCatalog{}, err
		}
		groups, err := s.store.ListGroups(ctx, true)
		if err != nil {
			return permissionCatalog{}, err
		}
		active := make(map[int64]bool, len(groups))
		for _, g := range groups {
			active[g.ID] = g.IsActive
		}
		return permissionCatalog{Permissions: perms, GroupActive: active}, nil
	})
}

// subjectRolesActive returns the subject's active roles from cache.
func (s *Service) subjectRolesActive(ctx context.Context, subjectID int64) ([]Role, error) {
	return remember(ctx, s.cache, keySubjectRoles(subjectID), func(ctx context.Context) ([]Role, error) {
		return s.store.SubjectRoles(ctx, subjectID, !s.cfg.CheckRoleStatus)
	})
}

// subjectRolesAll returns every role held, including inactive ones.
func (s *Service) subjectRolesAll(ctx context.Context, subjectID int64) ([]Role, error) {
	return remember(ctx, s.cache, keySubjectRolesAll(subjectID), func(ctx context.Context) ([]Role, error) {
		return s.store.SubjectRoles(ctx, subjectID, true)
	})
}

func (s *Service) subjectDirectActive(ctx context.Context, subjectID int64) ([]Permission, error) {
	return remember(ctx, s.cache, keySubjectDirectActive(subjectID), func(ctx context.Context) ([]Permission, error) {
		return s.store.SubjectDirectPermissions(ctx, subjectID, !s.cfg.FilterInactive)
	})
}

func (s *Service) subjectDirectAll(ctx context.Context, subjectID int64) ([]Permission, error) {
	return remember(ctx, s.cache, keySubjectDirectAll(subjectID), func(ctx context.Context) ([]Permission, error) {
		return s.store.SubjectDirectPermissions(ctx, subjectID, true)
	})
}

// subjectPermissionIDs is the cached membership set: the IDs of every
// permission granted directly or through an active role, before any status
// filtering. Status is applied at query time against the catalog so that a
// permission or group toggle needs no per-subject fan-out.
func (s *Service) subjectPermissionIDs(ctx context.Context, subjectID int64) ([]int64, error) {
	return remember(ctx, s.cache, keySubjectPermissions(subjectID), func(ctx context.Context) ([]int64, error) {
		direct, err := s.store.SubjectDirectPermissions(ctx, subjectID, true)
		if err != nil {
			return nil, err
		}
		roles, err := s.subjectRolesActive(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		return s.mergePermissionIDs(ctx, direct, roles)
	})
}

// subjectPermissionIDsAll is the membership set drawn from every role,
// active or not.
func (s *Service) subjectPermissionIDsAll(ctx context.Context, subjectID int64) ([]int64, error) {
	return remember(ctx, s.cache, keySubjectPermissionsAll(subjectID), func(ctx context.Context) ([]int64, error) {
		direct, err := s.store.SubjectDirectPermissions(ctx, subjectID, true)
		if err != nil {
			return nil, err
		}
		roles, err := s.subjectRolesAll(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		return s.mergePermissionIDs(ctx, direct, roles)
	})
}

func (s *Service) mergePermissionIDs(ctx context.Context, direct []Permission, roles []Role) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(id int64) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, p := range direct {
		add(p.ID)
	}
	for _, role := range roles {
		if !s.status.roleActive(role) {
			continue
		}
		perms, err := s.rolePermissionsAll(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			add(p.ID)
		}
	}
	return ids, nil
}

// rolePermissionsActive is the role's active permission set from cache.
func (s *Service) rolePermissionsActive(ctx context.Context, roleID int64) ([]Permission, error) {
	return remember(ctx, s.cache, keyRolePermissionsActive(roleID), func(ctx context.Context) ([]Permission, error) {
		return s.store.RolePermissions(ctx, roleID, !s.cfg.FilterInactive)
	})
}

// rolePermissionsAll is the role's full permission set from cache.
func (s *Service) rolePermissionsAll(ctx context.Context, roleID int64) ([]Permission, error) {
	return remember(ctx, s.cache, keyRolePermissionsAll(roleID), func(ctx context.Context) ([]Permission, error) {
		return s.store.RolePermissions(ctx, roleID, true)
	})
}

// AllRoles lists the role catalog, cached.
func (s *Service) AllRoles(ctx context.Context, includeInactive bool) ([]Role, error) {
	key := keyRolesAllActive
	if includeInactive {
		key = keyRolesAllWithInactive
	}
	return remember(ctx, s.cache, key, func(ctx context.Context) ([]Role, error) {
		return s.store.ListRoles(ctx, includeInactive)
	})
}

// AllPermissions lists the permission catalog, cached. The active view is
// cached under its own key, derived from the full catalog.
func (s *Service) AllPermissions(ctx context.Context, includeInactive bool) ([]Permission, error) {
	if includeInactive {
		cat, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		return cat.Permissions, nil
	}
	return remember(ctx, s.cache, keyPermissionsAllActive, func(ctx context.Context) ([]Permission, error) {
		cat, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Permission, 0, len(cat.Permissions))
		for _, p := range cat.Permissions {
			if s.status.effectivePermissionActive(p, cat.groupStatus(p)) {
				out = append(out, p)
			}
		}
		return out, nil
	})
}

// AllGroups lists groups ordered by sort order, cached.
func (s *Service) AllGroups(ctx context.Context, includeInactive bool) ([]Group, error) {
	groups, err := remember(ctx, s.cache, keyGroupsAll, func(ctx context.Context) ([]Group, error) {
		return s.store.ListGroups(ctx, true)
	})
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return groups, nil
	}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

// DefaultRole returns the role flagged is_default, cached.
func (s *Service) DefaultRole(ctx context.Context) (Role, error) {
	return remember(ctx, s.cache, keyRoleDefault, func(ctx context.Context) (Role, error) {
		return s.store.DefaultRole(ctx)
	})
}

// FindRole resolves a role by slug, name, or numeric id, active only.
func (s *Service) FindRole(ctx context.Context, identifier string) (Role, error) {
	role, err := remember(ctx, s.cache, keyRoleSlug(identifier), func(ctx context.Context) (Role, error) {
		return s.store.GetRoleBySlug(ctx, identifier, false)
	})
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}
	if role, err := s.store.GetRoleByName(ctx, identifier, false); err == nil {
		return role, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}
	if id, idErr := strconv.ParseInt(identifier, 10, 64); idErr == nil {
		return s.store.GetRole(ctx, id)
	}
	return Role{}, ErrNotFound
}

// FindPermission resolves a permission by slug, name, or numeric id.
func (s *Service) FindPermission(ctx context.Context, identifier string) (Permission, error) {
	perm, err := remember(ctx, s.cache, keyPermissionSlug(identifier), func(ctx context.Context) (Permission, error) {
		return s.store.GetPermissionBySlug(ctx, identifier, false)
	})
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Permission{}, err
	}
	if perm, err := s.store.GetPermissionByName(ctx, identifier, false); err == nil {
		return perm, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Permission{}, err
	}
	if id, idErr := strconv.ParseInt(identifier, 10, 64); idErr == nil {
		return s.store.GetPermission(ctx, id)
	}
	return Permission{}, ErrNotFound
}

// resolveRoles maps assignment inputs (Role values, slugs, names, ids) to
// stored roles, including inactive ones: assignment is an administrative act
// independent of current activity. Unknown identifiers are dropped.
func (s *Service) resolveRoles(ctx context.Context, inputs []RoleInput) ([]Role, error) {
	seen := make(map[int64]struct{}, len(inputs))
	var out []Role
	add := func(role Role) {
		if _, dup := seen[role.ID]; !dup {
			seen[role.ID] = struct{}{}
			out = append(out, role)
		}
	}
	for _, input := range inputs {
		switch v := input.(type) {
		case Role:
			if v.ID != 0 {
				add(v)
			}
		case *Role:
			if v != nil && v.ID != 0 {
				add(*v)
			}
		case string:
			role, err := s.lookupRoleAdmin(ctx, v)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			add(role)
		case int:
			s.resolveRoleID(ctx, int64(v), add)
		case int64:
			s.resolveRoleID(ctx, v, add)
		default:
			return nil, fmt.Errorf("rbac: unsupported role input %T", input)
		}
	}
	return out, nil
}

func (s *Service) resolveRoleID(ctx context.Context, id int64, add func(Role)) {
	if role, err := s.store.GetRole(ctx, id); err == nil {
		add(role)
	}
}

func (s *Service) lookupRoleAdmin(ctx context.Context, identifier string) (Role, error) {
	role, err := s.store.GetRoleBySlug(ctx, identifier, true)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}
	role, err = s.store.GetRoleByName(ctx, identifier, true)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}
	if id, idErr := strconv.ParseInt(identifier, 10, 64); idErr == nil {
		return s.store.GetRole(ctx, id)
	}
	return Role{}, ErrNotFound
}

// resolvePermissions mirrors resolveRoles for permissions.
func (s *Service) resolvePermissions(ctx context.Context, inputs []PermissionInput) ([]Permission, error) {
	seen := make(map[int64]struct{}, len(inputs))
	var out []Permission
	add := func(perm Permission) {
		if _, dup := seen[perm.ID]; !dup {
			seen[perm.ID] = struct{}{}
			out = append(out, perm)
		}
	}
	for _, input := range inputs {
		switch v := input.(type) {
		case Permission:
			if v.ID != 0 {
				add(v)
			}
		case *Permission:
			if v != nil && v.ID != 0 {
				add(*v)
			}
		case string:
			perm, err := s.lookupPermissionAdmin(ctx, v)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			add(perm)
		case int:
			s.resolvePermissionID(ctx, int64(v), add)
		case int64:
			s.resolvePermissionID(ctx, v, add)
		default:
			return nil, fmt.Errorf("rbac: unsupported permission input %T", input)
		}
	}
	return out, nil
}

func (s *Service) resolvePermissionID(ctx context.Context, id int64, add func(Permission)) {
	if perm, err := s.store.GetPermission(ctx, id); err == nil {
		add(perm)
	}
}

func (s *Service) lookupPermissionAdmin(ctx context.Context, identifier string) (Permission, error) {
	perm, err := s.store.GetPermissionBySlug(ctx, identifier, true)
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Permission{}, err
	}
	perm, err = s.store.GetPermissionByName(ctx, identifier, true)
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Permission{}, err
	}
	if id, idErr := strconv.ParseInt(identifier, 10, 64); idErr == nil {
		return s.store.GetPermission(ctx, id)
	}
	return Permission{}, ErrNotFound
}

func permissionIDs(perms []Permission) []int64 {
	ids := make([]int64, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}

func roleIDs(roles []Role) []int64 {
	ids := make([]int64, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	return ids
}
