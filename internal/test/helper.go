// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test provides the in-process CLI driver used by cmd/xe's
// integration tests. Adapted from the teacher's internal/test.Helper,
// which spawned a built `dep` binary and captured its stdout/stderr;
// here the xe command dispatcher is small enough to drive in-process
// (no subprocess, no golden-file project fixtures tied to GOPATH), so
// Helper invokes main.Config.Run directly against a temp project and
// a temp per-user home directory.
package test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/d4l3k/messagediff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// PrintLogs controls echoing each command's stdout/stderr to the test
// log as it runs, mirroring the teacher's -logs flag.
var PrintLogs = flag.Bool("logs", false, "log stdout/stderr of each xe invocation")

// logWriter adapts a testing.TB into an io.Writer that logs one test
// line per non-blank input line, so a captured command's combined
// output reads in `go test -v` the way it would in a terminal instead
// of as one run-together blob.
type logWriter struct{ tb testing.TB }

func (w logWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(string(b), "\n") {
		if trimmed := strings.TrimRightFunc(line, unicode.IsSpace); trimmed != "" {
			w.tb.Log(trimmed)
		}
	}
	return len(b), nil
}

// Runner is satisfied by main.Config; Helper depends on this interface
// instead of importing package main, which would create an import
// cycle with cmd/xe's own test files.
type Runner interface {
	Run() int
}

// NewRunner builds the Runner for one xe invocation: workingDir is the
// project directory, args is the full os.Args-style slice (args[0] is
// the program name), and stdout/stderr capture its output.
type NewRunner func(workingDir string, args []string, stdout, stderr *bytes.Buffer) Runner

// Helper drives a sequence of xe invocations against an isolated
// project directory and an isolated per-user home directory, so tests
// never touch the real $HOME/.xe or the package's own working directory.
type Helper struct {
	t          *testing.T
	newRunner  NewRunner
	projectDir string
	xeHome     string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

// NewHelper creates a Helper with a fresh project directory and a
// fresh xe home directory, and points $HOME at the latter so
// internal/config.Home resolves inside the sandbox.
func NewHelper(t *testing.T, newRunner NewRunner) *Helper {
	t.Helper()
	projectDir := t.TempDir()
	xeHome := t.TempDir()
	t.Setenv("HOME", xeHome)
	return &Helper{t: t, newRunner: newRunner, projectDir: projectDir, xeHome: xeHome}
}

// ProjectDir returns the sandboxed project working directory.
func (h *Helper) ProjectDir() string { return h.projectDir }

// Run executes one xe invocation against the sandboxed project
// directory and returns its exit code. Stdout/stderr are reset at the
// start of each call, so they hold only this invocation's output.
func (h *Helper) Run(args ...string) int {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	runner := h.newRunner(h.projectDir, append([]string{"xe"}, args...), &h.stdout, &h.stderr)
	code := runner.Run()
	if *PrintLogs {
		w := logWriter{h.t}
		h.t.Logf("xe %v (exit %d):", args, code)
		w.Write(h.stdout.Bytes())
		w.Write(h.stderr.Bytes())
	}
	return code
}

// Stdout returns the captured stdout of the most recent Run call.
func (h *Helper) Stdout() string { return h.stdout.String() }

// Stderr returns the captured stderr of the most recent Run call.
func (h *Helper) Stderr() string { return h.stderr.String() }

// ReadProjectFile reads a file relative to the sandboxed project
// directory, failing the test if it cannot be read.
func (h *Helper) ReadProjectFile(name string) string {
	h.t.Helper()
	data, err := os.ReadFile(filepath.Join(h.projectDir, name))
	if err != nil {
		h.t.Fatalf("ReadProjectFile(%s): %v", name, err)
	}
	return string(data)
}

// DiffProjectFile re-reads a project file and diffs it against before
// (a snapshot taken by an earlier ReadProjectFile call), returning a
// human-readable diff and whether the file is unchanged.
func (h *Helper) DiffProjectFile(name, before string) (diff string, equal bool) {
	h.t.Helper()
	after := h.ReadProjectFile(name)
	dmp := diffmatchpatch.New()
	d := dmp.DiffMain(before, after, false)
	return dmp.DiffPrettyText(d), before == after
}

// DiffValues compares two arbitrary values (structs, slices, maps) and
// reports a human-readable diff, for assertions that aren't plain
// file-content comparisons.
func DiffValues(a, b interface{}) (diff string, equal bool) {
	return messagediff.PrettyDiff(a, b)
}
