package main

import (
	"context"
	"flag"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/xeproj/xe/internal/manifest"
	"github.com/xeproj/xe/internal/runtime"
	"github.com/xeproj/xe/internal/xerrors"
)

// runCommand launches a subprocess with the project's runtime
// environment applied: PATH prepended with the interpreter/env's bin
// directory and VIRTUAL_ENV set when an environment is in play,
// generalized from the Rust original's apply_runtime_env.
type runCommand struct{}

func (c *runCommand) Name() string      { return "run" }
func (c *runCommand) Args() string      { return "<command> [args...]" }
func (c *runCommand) ShortHelp() string { return "run a command inside the project's runtime" }
func (c *runCommand) LongHelp() string {
	return "Ensure the project's runtime, then execute the given command with PATH and VIRTUAL_ENV set to that runtime."
}
func (c *runCommand) Register(fs *flag.FlagSet) {}

func (c *runCommand) Run(ctx *Ctx, args []string) error {
	if len(args) == 0 {
		return &xerrors.InvalidInput{Subject: "run", Reason: "a command to run is required"}
	}
	sel, mutated, err := ctx.Selector.EnsureRuntime(context.Background(), ctx.Manifest, ctx.WorkingDir)
	if err != nil {
		return err
	}
	if mutated {
		if err := manifest.Save(ctx.Path, ctx.Manifest); err != nil {
			return err
		}
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = applyRuntimeEnv(os.Environ(), sel)
	return cmd.Run()
}

// shellCommand launches the user's interactive shell with the same
// runtime environment applied as "xe run".
type shellCommand struct{}

func (c *shellCommand) Name() string      { return "shell" }
func (c *shellCommand) Args() string      { return "" }
func (c *shellCommand) ShortHelp() string { return "open a shell inside the project's runtime" }
func (c *shellCommand) LongHelp() string {
	return "Ensure the project's runtime, then spawn $SHELL (or /bin/sh) with PATH and VIRTUAL_ENV set to that runtime."
}
func (c *shellCommand) Register(fs *flag.FlagSet) {}

func (c *shellCommand) Run(ctx *Ctx, args []string) error {
	sel, mutated, err := ctx.Selector.EnsureRuntime(context.Background(), ctx.Manifest, ctx.WorkingDir)
	if err != nil {
		return err
	}
	if mutated {
		if err := manifest.Save(ctx.Path, ctx.Manifest); err != nil {
			return err
		}
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = applyRuntimeEnv(os.Environ(), sel)
	return cmd.Run()
}

// applyRuntimeEnv prepends the runtime's bin directory to PATH and, for
// an environment selection, sets VIRTUAL_ENV the way a shell activation
// script would.
func applyRuntimeEnv(base []string, sel runtime.Selection) []string {
	binDir := filepath.Dir(sel.InterpreterExe)
	out := make([]string, 0, len(base)+1)
	pathSet := false
	for _, kv := range base {
		if strings.HasPrefix(kv, "PATH=") {
			out = append(out, "PATH="+binDir+string(os.PathListSeparator)+strings.TrimPrefix(kv, "PATH="))
			pathSet = true
			continue
		}
		out = append(out, kv)
	}
	if !pathSet {
		out = append(out, "PATH="+binDir)
	}
	if sel.IsEnv {
		out = append(out, "VIRTUAL_ENV="+filepath.Dir(binDir))
	}
	return out
}
