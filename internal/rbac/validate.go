package rbac

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// inputValidator enforces the configured format and length rules on role
// names and permission slugs before any store write.
type inputValidator struct {
	validate *validator.Validate
	nameRule string
	slugRule string
}

func newInputValidator(cfg Config) (*inputValidator, error) {
	namePattern, err := regexp.Compile(cfg.RoleNamePattern)
	if err != nil {
		return nil, fmt.Errorf("rbac: role name pattern: %w", err)
	}
	slugPattern, err := regexp.Compile(cfg.PermissionSlugPattern)
	if err != nil {
		return nil, fmt.Errorf("rbac: permission slug pattern: %w", err)
	}

	v := validator.New()
	if err := v.RegisterValidation("role_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("permission_slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}

	maxLen := cfg.MaxNameLength
	if maxLen <= 0 {
		maxLen = 50
	}
	return &inputValidator{
		validate: v,
		nameRule: fmt.Sprintf("required,max=%d,role_name", maxLen),
		slugRule: fmt.Sprintf("required,max=%d,permission_slug", maxLen),
	}, nil
}

// RoleName rejects names outside the configured pattern or length.
func (iv *inputValidator) RoleName(name string) error {
	if err := iv.validate.Var(name, iv.nameRule); err != nil {
		return &ValidationError{Fields: map[string]string{
			"name": fmt.Sprintf("role name %q fails rule %q", name, iv.nameRule),
		}}
	}
	return nil
}

// PermissionSlug rejects slugs outside the configured pattern or length.
// Only explicitly supplied slugs pass through here; generated slugs conform
// by construction.
func (iv *inputValidator) PermissionSlug(slug string) error {
	if err := iv.validate.Var(slug, iv.slugRule); err != nil {
		return &ValidationError{Fields: map[string]string{
			"slug": fmt.Sprintf("permission slug %q fails rule %q", slug, iv.slugRule),
		}}
	}
	return nil
}
