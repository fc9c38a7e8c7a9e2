// Package config loads the per-user global preferences file,
// <xe_home>/config.yaml, generalized from the teacher's use of a
// simple on-disk settings file (the project manifest's cache
// defaults), but here YAML-encoded the way distribution/distribution's
// configuration package parses its registry config.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// FileName is the global config's fixed name under the xe home directory.
const FileName = "config.yaml"

// Global holds per-user preferences that seed new projects.
type Global struct {
	DefaultInterpreterVersion string `yaml:"default_python"`
}

// Load reads the global config at path, returning a zero-value Global
// (not an error) if the file does not exist yet.
func Load(path string) (*Global, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Global{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	g := &Global{}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return g, nil
}

// Save writes g to path, creating parent directories as needed.
func Save(path string, g *Global) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	data, err := yaml.Marshal(g)
	if err != nil {
		return errors.Wrap(err, "failed to encode config.yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Home returns <user_home>/.xe, the root of all per-user state: cache,
// envs, config.yaml, and the trace span database.
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine user home directory")
	}
	return filepath.Join(home, ".xe"), nil
}
