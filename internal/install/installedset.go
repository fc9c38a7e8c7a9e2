package install

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/xeproj/xe/internal/manifest"
)

// installedSet is the mutex-guarded table of package identities already
// present in a site directory, discovered by a dist-info scan (spec.md
// §3/§4.4 step 5). The installer never writes its own marker; this set
// is read once per install and updated in memory as packages extract.
// Each entry is keyed on normalized name *and* version (spec.md:224's
// "Package identity — normalized name + version"), so a version bump
// is never mistaken for an already-installed package.
type installedSet struct {
	mu   sync.Mutex
	have map[string]struct{}
}

// scanInstalledSet lists siteDir's immediate children whose name ends
// in ".dist-info", splitting each on the last hyphen into
// (identity, version), and returns the set of normalized identity+version
// keys already on disk. Generalized from the teacher's godirwalk-based
// fast directory listing (used elsewhere in the pack for large source
// trees) applied here to a single non-recursive scan of the site
// directory.
func scanInstalledSet(siteDir string) (*installedSet, error) {
	have := make(map[string]struct{})
	err := godirwalk.Walk(siteDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == siteDir {
				return nil
			}
			if !de.IsDir() {
				return godirwalk.SkipThis
			}
			name := filepath.Base(osPathname)
			if strings.HasSuffix(name, ".dist-info") {
				identity, version := splitDistInfoName(name)
				have[packageIdentityKey(identity, version)] = struct{}{}
			}
			return filepath.SkipDir
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan installed set under %s", siteDir)
	}
	return &installedSet{have: have}, nil
}

// splitDistInfoName splits a "<name>-<version>.dist-info" directory name
// on its last hyphen and normalizes the identity half (spec.md §3).
func splitDistInfoName(name string) (identity, version string) {
	base := strings.TrimSuffix(name, ".dist-info")
	idx := strings.LastIndexByte(base, '-')
	if idx < 0 {
		return manifest.NormalizePackageIdentity(base), ""
	}
	return manifest.NormalizePackageIdentity(base[:idx]), base[idx+1:]
}

// packageIdentityKey computes the same normalized name+version key a
// dist-info scan would produce for pkg, so the installer can check and
// record packages using one shared namespace. Mirrors mergePackages's
// own dedup key, which has always included version.
func packageIdentityKey(name, version string) string {
	return manifest.NormalizePackageIdentity(name) + "==" + version
}

func (s *installedSet) contains(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.have[identity]
	return ok
}

// checkAndInsert inserts identity under the lock and reports whether it
// was already present, both in one critical section. The installer
// checks with contains before fetching and calls checkAndInsert after a
// successful extraction, so its check and its insert take the lock
// separately.
func (s *installedSet) checkAndInsert(identity string) (alreadyPresent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.have[identity]; ok {
		return true
	}
	s.have[identity] = struct{}{}
	return false
}
