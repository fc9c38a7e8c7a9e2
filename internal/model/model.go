// Package model holds the data types shared across the resolution/install
// pipeline: the package record and resolution graph from spec.md §3.
package model

import "sort"

// Package is one resolved package record: {name, version, archive_url,
// expected_hash}. Two records are equal under case-insensitive name +
// exact version (spec.md §3).
type Package struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	ArchiveURL  string `json:"archive_url"`
	ExpectedHash string `json:"expected_hash,omitempty"`
}

// Graph is the flat closure of package records emerging from the
// resolver for a requirement set, keyed by its solve key (spec.md §3).
type Graph struct {
	InterpreterVersion string    `json:"interpreter_version"`
	Requirements       []string  `json:"requirements"`
	Packages           []Package `json:"packages"`
}

// SortPackages sorts pkgs by name in place, the ordering guarantee
// spec.md §5/§8 requires of any persisted or returned graph.
func SortPackages(pkgs []Package) {
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
}
