package manifest

import "strings"

// NormalizeDepName normalizes a requirement or dependency key: trim,
// lowercase, then collapse '_' and '.' to '-'. Spec.md §3: "Requirements
// and dependency keys normalize by: trim → lowercase → _ → -, . → -."
func NormalizeDepName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	n = strings.ReplaceAll(n, ".", "-")
	return n
}

// NormalizePackageIdentity normalizes an installed package identity:
// trim, lowercase, then collapse '-' and '.' to '_'. Deliberately the
// mirror image of NormalizeDepName because archive metadata uses this
// form (spec.md §3).
func NormalizePackageIdentity(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "_")
	n = strings.ReplaceAll(n, ".", "_")
	return n
}

// RequirementToDepName extracts the normalized dependency-name portion
// of a raw requirement string such as "Flask[async]>=2.0", discarding
// any extras or version specifier. Generalized from the Rust original's
// requirement_to_dep_name.
func RequirementToDepName(requirement string) (string, bool) {
	name := strings.TrimSpace(requirement)
	if name == "" {
		return "", false
	}
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.IndexAny(name, " <>=!~;"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	return NormalizeDepName(name), true
}
