package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/xeproj/xe/internal/xerrors"
)

// venvCommand manages environments directly, independent of install:
// list and delete (spec.md's supplemented CLI surface, SPEC_FULL.md
// §9). It does not create environments: "create" returns an error that
// points to "xe install" with environment.name or
// settings.autoprovision set.
type venvCommand struct{}

func (c *venvCommand) Name() string      { return "venv" }
func (c *venvCommand) Args() string      { return "<list|create|delete> [name]" }
func (c *venvCommand) ShortHelp() string { return "manage environments directly" }
func (c *venvCommand) LongHelp() string {
	return "List or delete environments under <xe_home>/envs, independent of install. \"create\" does not create an environment; it reports that environments are provisioned by \"xe install\"."
}
func (c *venvCommand) Register(fs *flag.FlagSet) {}

func (c *venvCommand) Run(ctx *Ctx, args []string) error {
	if len(args) == 0 {
		return &xerrors.InvalidInput{Subject: "venv", Reason: "a subcommand (list, create, delete) is required"}
	}
	envsRoot := filepath.Join(ctx.XeHome, "envs")

	switch args[0] {
	case "list":
		entries, err := os.ReadDir(envsRoot)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return &xerrors.IOFailed{Path: envsRoot, Cause: err}
		}
		for _, e := range entries {
			if e.IsDir() {
				ctx.Out.Println(e.Name())
			}
		}
		return nil
	case "delete":
		if len(args) < 2 {
			return &xerrors.InvalidInput{Subject: "venv delete", Reason: "an environment name is required"}
		}
		target := filepath.Join(envsRoot, args[1])
		if err := os.RemoveAll(target); err != nil {
			return &xerrors.IOFailed{Path: target, Cause: err}
		}
		ctx.Out.Printf("deleted %s\n", args[1])
		return nil
	case "create":
		return &xerrors.InvalidInput{Subject: "venv create", Reason: "use \"xe install\" with environment.name or settings.autoprovision set to provision an environment"}
	default:
		return &xerrors.InvalidInput{Subject: args[0], Reason: "unknown venv subcommand"}
	}
}
