package rbac

import "slices"

// guardResolver decides which authentication guard applies to a check and
// validates guard names against the recognized set.
type guardResolver struct {
	defaultGuard string
	ambientGuard string
	available    []string
	validate     bool
	strict       bool
}

func newGuardResolver(cfg Config) guardResolver {
	return guardResolver{
		defaultGuard: cfg.DefaultGuard,
		ambientGuard: cfg.AmbientGuard,
		available:    cfg.AvailableGuards,
		validate:     cfg.ValidateGuards,
		strict:       cfg.StrictGuards,
	}
}

// Resolve applies the priority order: explicit parameter, the entity's own
// guard, the configured default, then the ambient default.
func (g guardResolver) Resolve(explicit, entityGuard string) string {
	if explicit != "" {
		return explicit
	}
	if entityGuard != "" {
		return entityGuard
	}
	if g.defaultGuard != "" {
		return g.defaultGuard
	}
	if g.ambientGuard != "" {
		return g.ambientGuard
	}
	return "web"
}

// ResolveSubject resolves the guard for a subject, consulting its own guard
// when the type carries one.
func (g guardResolver) ResolveSubject(explicit string, subject Subject) string {
	entityGuard := ""
	if named, ok := subject.(GuardNamed); ok {
		entityGuard = named.GuardName()
	}
	return g.Resolve(explicit, entityGuard)
}

// Validate checks a guard name against the recognized set. An unknown guard
// is a GuardNotFoundError, never a silent fallback, while validation is
// enabled.
func (g guardResolver) Validate(name string) error {
	if !g.validate || name == "" {
		return nil
	}
	if slices.Contains(g.available, name) {
		return nil
	}
	return &GuardNotFoundError{Guard: name}
}

// Matches reports whether a role's guard satisfies the resolved guard. When
// guard-strictness is disabled guards are ignored entirely.
func (g guardResolver) Matches(roleGuard, resolved string) bool {
	if !g.strict {
		return true
	}
	return roleGuard == resolved
}
