package runtime

import "strings"

// slug lowercases name, turns spaces and underscores into hyphens,
// strips everything outside [a-z0-9-], trims leading/trailing hyphens,
// and falls back to "default" when the result is empty (spec.md §4.5).
func slug(name string) string {
	lowered := strings.ToLower(name)
	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r == ' ' || r == '_':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	result := strings.Trim(b.String(), "-")
	if result == "" {
		return "default"
	}
	return result
}
