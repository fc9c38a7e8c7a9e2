package main

import (
	"flag"

	"github.com/xeproj/xe/internal/manifest"
)

type initCommand struct{}

func (c *initCommand) Name() string      { return "init" }
func (c *initCommand) Args() string      { return "" }
func (c *initCommand) ShortHelp() string { return "set up a new project" }
func (c *initCommand) LongHelp() string {
	return "Create xe.toml in the current directory with default project, interpreter, and cache settings."
}
func (c *initCommand) Register(fs *flag.FlagSet) {}

func (c *initCommand) Run(ctx *Ctx, args []string) error {
	ctx.Out.Printf("initialized %s (project %q, interpreter %s)\n", manifest.FileName, ctx.Manifest.Project.Name, ctx.Manifest.Runtime.Version)
	return nil
}
