package rbac

import "time"

// Config collects every engine tunable. It is passed at construction and
// never re-read from ambient state mid-operation.
type Config struct {
	// Cache settings.
	CacheEnabled bool
	CacheTTL     time.Duration
	CachePrefix  string

	// Guard settings. DefaultGuard empty means fall back to AmbientGuard.
	DefaultGuard    string
	AmbientGuard    string
	AvailableGuards []string
	ValidateGuards  bool
	StrictGuards    bool

	// Status filtering.
	FilterInactive   bool
	CheckRoleStatus  bool
	CheckGroupStatus bool

	// Role slug that bypasses every permission and role check while
	// actively held. Empty disables the bypass.
	SuperAdminSlug string

	// Validation rules.
	RoleNamePattern       string
	PermissionSlugPattern string
	MaxNameLength         int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:          true,
		CacheTTL:              24 * time.Hour,
		CachePrefix:           "gatehouse",
		AmbientGuard:          "web",
		AvailableGuards:       []string{"web", "api", "admin"},
		ValidateGuards:        true,
		StrictGuards:          false,
		FilterInactive:        true,
		CheckRoleStatus:       true,
		CheckGroupStatus:      true,
		SuperAdminSlug:        "super-admin",
		RoleNamePattern:       `^[a-zA-Z0-9\s\-]+$`,
		PermissionSlugPattern: `^[a-z0-9.\-_]+$`,
		MaxNameLength:         50,
	}
}
