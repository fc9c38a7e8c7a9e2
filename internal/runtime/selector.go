// Package runtime implements the Runtime Selector: resolves which
// interpreter executable and which site directory a project uses right
// now, provisioning an environment on demand and locating its site
// directory by querying the interpreter (spec.md §4.5). Subprocess
// invocation follows the teacher's cmd.go pattern of wrapping os/exec
// with context-aware cancellation, generalized from a single VCS
// command runner into the general "run this interpreter subcommand"
// shape also used by internal/resolve.
package runtime

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/xeproj/xe/internal/manifest"
	"github.com/xeproj/xe/internal/trace"
)

// Selection is the outcome of EnsureRuntime: the interpreter executable
// and site directory a project should use, plus whether an environment
// (as opposed to the global interpreter) is in play.
type Selection struct {
	InterpreterExe string
	SiteDir        string
	EnvName        string
	IsEnv          bool
}

// Selector resolves a project's runtime per spec.md §4.5. XeHome is the
// per-user root (<xe_home> in spec.md §6); GlobalInterpreterVersion is
// the version the global config declares when a manifest leaves
// interpreter.version empty; Installer provisions a missing interpreter
// on demand.
type Selector struct {
	XeHome                   string
	GlobalInterpreterVersion string
	Installer                InstallerFunc
	Trace                    trace.Collector
	Log                      logrus.FieldLogger
}

// New builds a Selector with sane defaults for a nil trace collector or
// logger.
func New(xeHome, globalInterpreterVersion string, installer InstallerFunc, collector trace.Collector, log logrus.FieldLogger) *Selector {
	if collector == nil {
		collector = trace.Discard
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Selector{
		XeHome:                   xeHome,
		GlobalInterpreterVersion: globalInterpreterVersion,
		Installer:                installer,
		Trace:                    collector,
		Log:                      log,
	}
}

// EnsureRuntime implements spec.md §4.5's ensure_runtime. mutated
// reports whether m was changed in place (the autoprovision slug
// synthesis case); callers must save the manifest exactly when true.
func (s *Selector) EnsureRuntime(ctx context.Context, m *manifest.Manifest, projectDir string) (sel Selection, mutated bool, err error) {
	span := trace.Start(s.Trace, "runtime.ensure", map[string]interface{}{"project_dir": projectDir})
	defer span.Stop()

	version := m.Runtime.Version
	if version == "" {
		version = s.GlobalInterpreterVersion
	}
	major, minor, err := manifest.ParseInterpreterVersion(version)
	if err != nil {
		return Selection{}, false, err
	}
	majorMinor := fmt.Sprintf("%d.%d", major, minor)

	interpreterExe, err := s.locateOrInstallInterpreter(ctx, majorMinor)
	if err != nil {
		return Selection{}, false, err
	}

	envName := m.Env.Name
	if envName == "" && m.Settings.Autoprovision {
		envName = "auto-" + slug(m.Project.Name)
		m.Env.Name = envName
		mutated = true
	}

	if envName == "" {
		siteDir, err := globalSiteDir(ctx, interpreterExe)
		if err != nil {
			return Selection{}, mutated, err
		}
		return Selection{InterpreterExe: interpreterExe, SiteDir: siteDir, EnvName: "", IsEnv: false}, mutated, nil
	}

	envExe, siteDir, err := ensureEnv(ctx, interpreterExe, s.XeHome, envName, s.Log)
	if err != nil {
		return Selection{}, mutated, err
	}
	return Selection{InterpreterExe: envExe, SiteDir: siteDir, EnvName: envName, IsEnv: true}, mutated, nil
}

// locateOrInstallInterpreter implements spec.md §4.5 step 2: locate by
// convention, and on a miss, invoke the provisioner and retry once.
func (s *Selector) locateOrInstallInterpreter(ctx context.Context, majorMinor string) (string, error) {
	if exe, ok := locateInterpreter(s.XeHome, majorMinor); ok {
		return exe, nil
	}
	if s.Installer == nil {
		return "", &interpreterNotFoundError{majorMinor: majorMinor}
	}
	s.Log.WithField("version", majorMinor).Warn("runtime: interpreter not found, provisioning")
	if err := s.Installer(ctx, s.XeHome, majorMinor); err != nil {
		return "", err
	}
	exe, ok := locateInterpreter(s.XeHome, majorMinor)
	if !ok {
		return "", &interpreterNotFoundError{majorMinor: majorMinor}
	}
	return exe, nil
}

type interpreterNotFoundError struct {
	majorMinor string
}

func (e *interpreterNotFoundError) Error() string {
	return fmt.Sprintf("no interpreter %s found after provisioning", e.majorMinor)
}
