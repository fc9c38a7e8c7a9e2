package runtime

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sort"

	"github.com/Masterminds/semver"

	"github.com/xeproj/xe/internal/fetch"
	"github.com/xeproj/xe/internal/xerrors"
)

// interpreterRoot returns "<xe_home>/interpreters", the per-user root
// under which each installed interpreter lives in a MAJOR.MINOR-named
// directory (spec.md §4.5 step 2).
func interpreterRoot(xeHome string) string {
	return filepath.Join(xeHome, "interpreters")
}

func interpreterExeName() string {
	if goruntime.GOOS == "windows" {
		return "python.exe"
	}
	return "python3"
}

// locateInterpreter looks for an installed interpreter matching
// majorMinor, preferring the highest installed patch release. It
// returns the executable path, or ("", false) if none is installed.
func locateInterpreter(xeHome, majorMinor string) (string, bool) {
	root := filepath.Join(interpreterRoot(xeHome), majorMinor)
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}

	var versions []*semver.Version
	byVersion := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := semver.NewVersion(e.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
		byVersion[v.String()] = filepath.Join(root, e.Name(), "bin", interpreterExeName())
	}
	if len(versions) == 0 {
		return "", false
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].LessThan(versions[j]) })
	latest := versions[len(versions)-1]
	exe := byVersion[latest.String()]
	if _, err := os.Stat(exe); err != nil {
		return "", false
	}
	return exe, true
}

// InstallerFunc provisions an interpreter for majorMinor into xeHome,
// the out-of-scope "interpreter provisioner" collaborator from spec.md
// §6. The core only calls it lazily on a locate miss and retries.
type InstallerFunc func(ctx context.Context, xeHome, majorMinor string) error

// DefaultInstaller downloads a platform installer payload through the
// general fetch.DownloadFile path and invokes it non-interactively for
// majorMinor.
// Concrete installer URLs are a deployment concern left to callers that
// wrap DefaultInstaller with their own index; by itself it is a usable
// reference implementation of the provisioner contract.
func DefaultInstaller(installerURLFor func(majorMinor string) string) InstallerFunc {
	return func(ctx context.Context, xeHome, majorMinor string) error {
		url := installerURLFor(majorMinor)
		if url == "" {
			return &xerrors.InvalidInput{Subject: majorMinor, Reason: "no interpreter installer URL known for this version"}
		}
		path, err := fetch.DownloadFile(ctx, url, "xe-interpreter-installer", "")
		if err != nil {
			return err
		}
		defer os.Remove(path)

		dest := filepath.Join(interpreterRoot(xeHome), majorMinor)
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return &xerrors.IOFailed{Path: dest, Cause: err}
		}
		if err := os.Chmod(path, 0o755); err != nil {
			return &xerrors.IOFailed{Path: path, Cause: err}
		}
		cmd := exec.CommandContext(ctx, path, "--target", dest, "--quiet")
		if err := cmd.Run(); err != nil {
			return &xerrors.IOFailed{Path: dest, Cause: err}
		}
		return nil
	}
}
