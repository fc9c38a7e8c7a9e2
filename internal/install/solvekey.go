package install

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/xeproj/xe/internal/manifest"
)

// normalizeRequirements trims, drops empties, dedupes and sorts a raw
// requirement set (spec.md §4.4 step 1). Duplicates are detected on the
// NormalizeDepName form, but the returned strings are the trimmed
// original text (the first spelling seen wins).
func normalizeRequirements(requirements []string) []string {
	seen := make(map[string]struct{}, len(requirements))
	out := make([]string, 0, len(requirements))
	for _, r := range requirements {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		norm := manifest.NormalizeDepName(r)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// solveKey computes the hex SHA-1 of
// interpreterVersion || "|" || req_1 || "|" || req_2 || "|" …
// over the requirements as normalizeRequirements returns them (trimmed,
// deduplicated, sorted) (spec.md §3/§6).
func solveKey(interpreterVersion string, normalizedRequirements []string) string {
	var b strings.Builder
	b.WriteString(interpreterVersion)
	for _, r := range normalizedRequirements {
		b.WriteString("|")
		b.WriteString(r)
	}
	b.WriteString("|")
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
