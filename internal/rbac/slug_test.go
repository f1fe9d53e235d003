package rbac

import (
	"context"
	"testing"
)

func TestKebabSlug(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Content Editor", "content-editor"},
		{"  Senior   Editor  ", "senior-editor"},
		{"Editor #2 (temp)", "editor-2-temp"},
		{"Café Manager", "cafe-manager"},
		{"ÜBER admin", "uber-admin"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := kebabSlug(tc.name); got != tc.want {
			t.Errorf("kebabSlug(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDotSlug(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Edit Posts", "edit.posts"},
		{"Manage User Accounts", "manage.user.accounts"},
		{"Delete/Restore", "delete.restore"},
	}
	for _, tc := range cases {
		if got := dotSlug(tc.name); got != tc.want {
			t.Errorf("dotSlug(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestGenerateUniqueSlug(t *testing.T) {
	taken := map[string]bool{"editor": true, "editor-2": true}
	exists := func(ctx context.Context, slug string) (bool, error) {
		return taken[slug], nil
	}

	slug, err := generateUniqueSlug(context.Background(), "Editor", kebabSlug, "-", exists)
	if err != nil {
		t.Fatalf("generateUniqueSlug: %v", err)
	}
	if slug != "editor-3" {
		t.Fatalf("slug = %q, want editor-3", slug)
	}

	slug, err = generateUniqueSlug(context.Background(), "Reviewer", kebabSlug, "-", exists)
	if err != nil {
		t.Fatalf("generateUniqueSlug: %v", err)
	}
	if slug != "reviewer" {
		t.Fatalf("slug = %q, want reviewer", slug)
	}
}

func TestGenerateUniqueSlugEmptyName(t *testing.T) {
	exists := func(ctx context.Context, slug string) (bool, error) { return false, nil }
	slug, err := generateUniqueSlug(context.Background(), "!!!", kebabSlug, "-", exists)
	if err != nil {
		t.Fatalf("generateUniqueSlug: %v", err)
	}
	if slug != "item" {
		t.Fatalf("slug = %q, want item", slug)
	}
}

func TestGenerateUniqueSlugDotSuffix(t *testing.T) {
	taken := map[string]bool{"edit.posts": true}
	exists := func(ctx context.Context, slug string) (bool, error) {
		return taken[slug], nil
	}
	slug, err := generateUniqueSlug(context.Background(), "Edit Posts", dotSlug, ".", exists)
	if err != nil {
		t.Fatalf("generateUniqueSlug: %v", err)
	}
	if slug != "edit.posts.2" {
		t.Fatalf("slug = %q, want edit.posts.2", slug)
	}
}
