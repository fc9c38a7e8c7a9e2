// Package manifest implements the Manifest Store: load/save/normalize
// the project's declarative xe.toml, generalized from the teacher's
// JSON dependency manifest (manifest.go) into the TOML-encoded project
// manifest spec.md §3/§6 describes. No other package may write this file.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// FileName is the manifest's fixed name at the project root.
const FileName = "xe.toml"

// Manifest is the in-memory, normalized representation of xe.toml.
type Manifest struct {
	Project  ProjectConfig  `toml:"project"`
	Runtime  RuntimeConfig  `toml:"interpreter"`
	Deps     map[string]string `toml:"deps"`
	Cache    CacheConfig    `toml:"cache"`
	Env      EnvConfig      `toml:"environment"`
	Settings SettingsConfig `toml:"settings"`
}

type ProjectConfig struct {
	Name string `toml:"name"`
}

type RuntimeConfig struct {
	Version string `toml:"version"`
}

type CacheConfig struct {
	Mode      string `toml:"mode"`
	GlobalDir string `toml:"global_dir"`
}

type EnvConfig struct {
	Name string `toml:"name"`
}

type SettingsConfig struct {
	Autoprovision bool `toml:"autoprovision"`
}

const (
	defaultInterpreterVersion = "3.12"
	defaultCacheMode          = "global-cas"
)

// NewDefault builds the manifest a fresh project gets on first touch,
// deriving project.name from the leaf directory name as spec.md §3
// requires.
func NewDefault(projectDir, defaultCASRoot string) *Manifest {
	m := &Manifest{
		Project: ProjectConfig{Name: leafName(projectDir)},
		Runtime: RuntimeConfig{Version: defaultInterpreterVersion},
		Deps:    map[string]string{},
		Cache:   CacheConfig{Mode: defaultCacheMode, GlobalDir: defaultCASRoot},
	}
	return m
}

// LoadOrCreate loads xe.toml from projectDir, creating it with defaults
// if absent. Returns the normalized manifest and the path it lives at.
func LoadOrCreate(projectDir, defaultCASRoot string) (*Manifest, string, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		m := NewDefault(projectDir, defaultCASRoot)
		if err := Save(path, m); err != nil {
			return nil, "", err
		}
		return m, path, nil
	} else if err != nil {
		return nil, "", errors.Wrapf(err, "failed to stat %s", path)
	}

	m, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return m, path, nil
}

// Load reads and normalizes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	m := &Manifest{}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	projectDir := filepath.Dir(path)
	defaultCASRoot := defaultGlobalCacheDir()
	normalize(m, projectDir, defaultCASRoot)
	return m, nil
}

// Save normalizes m and writes it to path, creating parent
// directories as needed.
func Save(path string, m *Manifest) error {
	projectDir := filepath.Dir(path)
	normalize(m, projectDir, defaultGlobalCacheDir())

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", projectDir)
	}
	data, err := toml.Marshal(*m)
	if err != nil {
		return errors.Wrap(err, "failed to encode xe.toml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// normalize rewrites every empty-string field to its canonical default,
// the invariant spec.md §3 requires to hold after every save.
func normalize(m *Manifest, projectDir, defaultCASRoot string) {
	if strings.TrimSpace(m.Project.Name) == "" {
		m.Project.Name = leafName(projectDir)
	}
	if strings.TrimSpace(m.Runtime.Version) == "" {
		m.Runtime.Version = defaultInterpreterVersion
	}
	if strings.TrimSpace(m.Cache.Mode) == "" {
		m.Cache.Mode = defaultCacheMode
	}
	if strings.TrimSpace(m.Cache.GlobalDir) == "" {
		if defaultCASRoot == "" {
			defaultCASRoot = defaultGlobalCacheDir()
		}
		m.Cache.GlobalDir = defaultCASRoot
	}
	if m.Deps == nil {
		m.Deps = map[string]string{}
	}
}

func leafName(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "project"
	}
	return name
}

func defaultGlobalCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".xe", "cache")
	}
	return filepath.Join(home, ".xe", "cache")
}

// ParseInterpreterVersion validates that a version string is of the
// form MAJOR.MINOR or MAJOR.MINOR.PATCH and returns the major/minor
// pair, the invariant spec.md §3 requires.
func ParseInterpreterVersion(version string) (major, minor int, err error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("interpreter version %q must be MAJOR.MINOR or MAJOR.MINOR.PATCH", version)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("interpreter version %q has a non-numeric major component", version)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("interpreter version %q has a non-numeric minor component", version)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return 0, 0, fmt.Errorf("interpreter version %q has a non-numeric patch component", version)
		}
	}
	return major, minor, nil
}
