package runtime

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/sirupsen/logrus"
	shutil "github.com/termie/go-shutil"

	"github.com/xeproj/xe/internal/xerrors"
)

var errNoEnvFacility = errors.New("no environment-creation facility succeeded and no skeleton is configured")

func envsRoot(xeHome string) string {
	return filepath.Join(xeHome, "envs")
}

func envDir(xeHome, envName string) string {
	return filepath.Join(envsRoot(xeHome), envName)
}

func envInterpreterPath(envDir string) string {
	if goruntime.GOOS == "windows" {
		return filepath.Join(envDir, "Scripts", "python.exe")
	}
	return filepath.Join(envDir, "bin", interpreterExeName())
}

func expectedSiteLeaf() string {
	return "site-packages"
}

// ensureEnv creates <envs_root>/<envName> by invoking interpreterExe's
// native environment-creation facility ("-m venv"), falling back to a
// second facility ("-m virtualenv", bootstrapped via the resolver tool
// if missing) on failure, then returns the environment's own
// interpreter path and site directory (spec.md §4.5 step 4).
func ensureEnv(ctx context.Context, interpreterExe, xeHome, envName string, log logrus.FieldLogger) (exe, siteDir string, err error) {
	dir := envDir(xeHome, envName)
	if _, statErr := os.Stat(dir); statErr != nil {
		if err := createEnvWithFallback(ctx, interpreterExe, dir, log); err != nil {
			return "", "", err
		}
	}

	exe = envInterpreterPath(dir)
	if _, statErr := os.Stat(exe); statErr != nil {
		return "", "", &xerrors.IOFailed{Path: exe, Cause: statErr}
	}

	siteDir, err = locateSiteDir(ctx, exe, dir)
	if err != nil {
		return "", "", err
	}
	return exe, siteDir, nil
}

func createEnvWithFallback(ctx context.Context, interpreterExe, dir string, log logrus.FieldLogger) error {
	cmd := exec.CommandContext(ctx, interpreterExe, "-m", "venv", dir)
	if err := cmd.Run(); err == nil {
		return nil
	}

	log.WithField("env_dir", dir).Warn("runtime: native venv creation failed, falling back to virtualenv")
	if err := bootstrapVirtualenv(ctx, interpreterExe, log); err != nil {
		return createEnvFromSkeleton(dir, log)
	}
	fallback := exec.CommandContext(ctx, interpreterExe, "-m", "virtualenv", dir)
	if err := fallback.Run(); err != nil {
		return createEnvFromSkeleton(dir, log)
	}
	return nil
}

// createEnvFromSkeleton is the last-resort fallback when neither venv
// nor virtualenv are available: clone a cached skeleton environment
// tree, if the host has one, rather than fail outright.
func createEnvFromSkeleton(dir string, log logrus.FieldLogger) error {
	skeleton := os.Getenv("XE_ENV_SKELETON")
	if skeleton == "" {
		return &xerrors.IOFailed{Path: dir, Cause: errNoEnvFacility}
	}
	log.WithField("skeleton", skeleton).Warn("runtime: cloning environment skeleton as a last resort")
	return copyEnvSkeleton(skeleton, dir)
}

// bootstrapVirtualenv installs the virtualenv package via the
// interpreter's own installer tool so the fallback path in
// createEnvWithFallback has something to invoke.
func bootstrapVirtualenv(ctx context.Context, interpreterExe string, log logrus.FieldLogger) error {
	cmd := exec.CommandContext(ctx, interpreterExe, "-m", "pip", "install", "--quiet", "virtualenv")
	if err := cmd.Run(); err != nil {
		return &xerrors.IOFailed{Path: interpreterExe, Cause: err}
	}
	log.Debug("runtime: bootstrapped virtualenv fallback")
	return nil
}

// locateSiteDir returns the environment's conventional site path,
// re-querying the interpreter when the conventional path's basename
// does not match the expected leaf (spec.md §4.5 step 4's "platform
// quirk" case) or when that path does not exist.
func locateSiteDir(ctx context.Context, exe, dir string) (string, error) {
	conventional := conventionalSitePath(dir)
	if filepath.Base(conventional) == expectedSiteLeaf() {
		if _, err := os.Stat(conventional); err == nil {
			return conventional, nil
		}
	}
	return querySiteDir(ctx, exe)
}

func conventionalSitePath(dir string) string {
	if goruntime.GOOS == "windows" {
		return filepath.Join(dir, "Lib", "site-packages")
	}
	return filepath.Join(dir, "lib", "python", "site-packages")
}

// querySiteDir runs "import site; print(site.getsitepackages()[0])"
// against exe and returns the trimmed output (spec.md §4.5 step 4).
func querySiteDir(ctx context.Context, exe string) (string, error) {
	cmd := exec.CommandContext(ctx, exe, "-c", "import site; print(site.getsitepackages()[0])")
	out, err := cmd.Output()
	if err != nil {
		return "", &xerrors.IOFailed{Path: exe, Cause: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// globalSiteDir returns the site directory of the (non-env) global
// interpreter whose executable is exe, as reported by querying exe
// itself. It does not derive a conventional path from exe's location.
func globalSiteDir(ctx context.Context, exe string) (string, error) {
	return querySiteDir(ctx, exe)
}

// copyEnvSkeleton duplicates a template environment directory tree,
// used when seeding a new environment from a cached skeleton instead of
// invoking the interpreter's creation facility. Uses
// github.com/termie/go-shutil's CopyTree the way the teacher vendors it
// for cross-platform recursive directory copies with symlink handling.
func copyEnvSkeleton(src, dst string) error {
	if err := shutil.CopyTree(src, dst, nil); err != nil {
		return &xerrors.IOFailed{Path: dst, Cause: err}
	}
	return nil
}
