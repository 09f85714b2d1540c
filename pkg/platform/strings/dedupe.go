// Package strings holds small helpers for list-valued settings.
package strings

import "strings"

// DedupeAndTrim trims every entry and keeps the first occurrence of each
// non-blank value, in input order. A nil input stays nil.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
