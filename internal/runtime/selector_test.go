package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xeproj/xe/internal/manifest"
)

// writeFakeInterpreter installs a shell script at
// <xeHome>/interpreters/<majorMinor>/<version>/bin/python3 that
// understands just enough of the real interpreter's CLI surface for
// EnsureRuntime's global (no-environment) path: "-c" site queries.
func writeFakeInterpreter(t *testing.T, xeHome, majorMinor, version string) {
	t.Helper()
	dir := filepath.Join(interpreterRoot(xeHome), majorMinor, version, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(dir, interpreterExeName())
	script := "#!/bin/sh\necho \"$XE_TEST_SITE_DIR\"\n"
	if err := os.WriteFile(exe, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureRuntimeGlobalSiteDir(t *testing.T) {
	xeHome := t.TempDir()
	writeFakeInterpreter(t, xeHome, "3.12", "3.12.1")

	wantSite := filepath.Join(xeHome, "fake-site-packages")
	t.Setenv("XE_TEST_SITE_DIR", wantSite)

	s := New(xeHome, "3.12", nil, nil, nil)
	m := &manifest.Manifest{
		Project: manifest.ProjectConfig{Name: "my-proj"},
		Runtime: manifest.RuntimeConfig{Version: "3.12"},
	}

	sel, mutated, err := s.EnsureRuntime(context.Background(), m, t.TempDir())
	if err != nil {
		t.Fatalf("EnsureRuntime: %v", err)
	}
	if mutated {
		t.Error("expected no manifest mutation without autoprovision")
	}
	if sel.IsEnv {
		t.Error("expected the global interpreter path, not an environment")
	}
	if sel.SiteDir != wantSite {
		t.Errorf("site dir = %q, want %q", sel.SiteDir, wantSite)
	}
}

func TestEnsureRuntimeAutoprovisionSlugsAndMutates(t *testing.T) {
	xeHome := t.TempDir()
	writeFakeInterpreter(t, xeHome, "3.12", "3.12.1")
	t.Setenv("XE_TEST_SITE_DIR", filepath.Join(xeHome, "unused"))

	s := New(xeHome, "3.12", nil, nil, nil)
	m := &manifest.Manifest{
		Project:  manifest.ProjectConfig{Name: " My Tool_v2 "},
		Runtime:  manifest.RuntimeConfig{Version: "3.12"},
		Settings: manifest.SettingsConfig{Autoprovision: true},
	}

	_, mutated, err := s.EnsureRuntime(context.Background(), m, t.TempDir())
	// The fake interpreter has no real "-m venv" support, so environment
	// creation itself is expected to fail; what this test verifies is the
	// slug synthesis and manifest mutation that happen before that call.
	if !mutated {
		t.Error("expected the manifest to be mutated by autoprovision slug synthesis")
	}
	if m.Env.Name != "auto-my-tool-v2" {
		t.Errorf("env name = %q, want auto-my-tool-v2", m.Env.Name)
	}
	_ = err
}

func TestLocateInterpreterPrefersHighestPatch(t *testing.T) {
	xeHome := t.TempDir()
	writeFakeInterpreter(t, xeHome, "3.12", "3.12.1")
	writeFakeInterpreter(t, xeHome, "3.12", "3.12.9")
	writeFakeInterpreter(t, xeHome, "3.12", "3.12.3")

	exe, ok := locateInterpreter(xeHome, "3.12")
	if !ok {
		t.Fatal("expected an interpreter to be located")
	}
	want := filepath.Join(interpreterRoot(xeHome), "3.12", "3.12.9", "bin", interpreterExeName())
	if exe != want {
		t.Errorf("locateInterpreter = %q, want %q", exe, want)
	}
}
