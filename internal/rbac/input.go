package rbac

import "strings"

const guardSpecPrefix = "guard:"

// splitSpec normalizes a multi-value candidate spec: pipe- and comma-joined
// strings are split, entries trimmed, empties dropped, duplicates removed.
// The result is a set; order carries no semantics.
func splitSpec(specs ...string) []string {
	seen := make(map[string]struct{}, len(specs))
	var out []string
	for _, spec := range specs {
		for _, part := range strings.FieldsFunc(spec, func(r rune) bool {
			return r == '|' || r == ','
		}) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// splitSpecWithGuard extracts a "guard:<name>" entry from a candidate spec,
// returning the remaining candidates and the guard (empty when absent).
func splitSpecWithGuard(specs ...string) ([]string, string) {
	guard := ""
	items := splitSpec(specs...)
	out := items[:0]
	for _, item := range items {
		if strings.HasPrefix(item, guardSpecPrefix) {
			guard = strings.TrimPrefix(item, guardSpecPrefix)
			continue
		}
		out = append(out, item)
	}
	return out, guard
}
