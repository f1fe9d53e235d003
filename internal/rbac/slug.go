package rbac

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// existsFunc probes the store for a slug collision.
type existsFunc func(ctx context.Context, slug string) (bool, error)

// normalizeFunc turns a human name into slug form. Roles and groups use
// kebab-case, permissions use dot-case.
type normalizeFunc func(name string) string

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeSlug(name string, sep rune) string {
	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteRune(sep)
				lastSep = true
			}
		}
	}
	return strings.Trim(b.String(), string(sep))
}

// kebabSlug normalizes "Content Editor" to "content-editor".
func kebabSlug(name string) string { return normalizeSlug(name, '-') }

// dotSlug normalizes "Edit Posts" to "edit.posts".
func dotSlug(name string) string { return normalizeSlug(name, '.') }

// generateUniqueSlug normalizes name and probes the store, appending an
// incrementing numeric suffix until no collision remains. The suffix
// separator follows the normalizer's style ("-2" for kebab, ".2" for dot).
// Never returns an empty string; termination is bounded by the number of
// stored slugs.
func generateUniqueSlug(ctx context.Context, name string, normalize normalizeFunc, sep string, exists existsFunc) (string, error) {
	base := normalize(name)
	if base == "" {
		base = "item"
	}

	slug := base
	for counter := 2; ; counter++ {
		taken, err := exists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("rbac: probe slug %q: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s%s%d", base, sep, counter)
	}
}
