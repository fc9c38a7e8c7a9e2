package main

import (
	"flag"
	"path/filepath"
	"strconv"

	"github.com/xeproj/xe/internal/config"
	"github.com/xeproj/xe/internal/manifest"
	"github.com/xeproj/xe/internal/xerrors"
)

// configCommand toggles settings.autoprovision on the project manifest,
// and the per-user default interpreter version when given "--global"
// (SPEC_FULL.md §9's supplemented xe config feature).
type configCommand struct {
	global bool
}

func (c *configCommand) Name() string      { return "config" }
func (c *configCommand) Args() string      { return "<key> <value>" }
func (c *configCommand) ShortHelp() string { return "change project/global settings" }
func (c *configCommand) LongHelp() string {
	return "Set autoprovision, environment.name, or interpreter.version in the project manifest, or (with -global) default_python, the per-user default interpreter version."
}
func (c *configCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.global, "global", false, "operate on the per-user global config instead of the project manifest")
}

func (c *configCommand) Run(ctx *Ctx, args []string) error {
	if len(args) != 2 {
		return &xerrors.InvalidInput{Subject: "config", Reason: "exactly one key and one value are required"}
	}
	key, value := args[0], args[1]

	if c.global {
		if key != "default_python" {
			return &xerrors.InvalidInput{Subject: key, Reason: "unknown global config key"}
		}
		ctx.Global.DefaultInterpreterVersion = value
		return config.Save(filepath.Join(ctx.XeHome, config.FileName), ctx.Global)
	}

	switch key {
	case "autoprovision":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &xerrors.InvalidInput{Subject: value, Reason: "autoprovision must be true or false"}
		}
		ctx.Manifest.Settings.Autoprovision = b
	case "environment.name":
		ctx.Manifest.Env.Name = value
	case "interpreter.version":
		ctx.Manifest.Runtime.Version = value
	default:
		return &xerrors.InvalidInput{Subject: key, Reason: "unknown project config key"}
	}
	return manifest.Save(ctx.Path, ctx.Manifest)
}
