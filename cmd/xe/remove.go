package main

import (
	"flag"

	"github.com/xeproj/xe/internal/manifest"
	"github.com/xeproj/xe/internal/xerrors"
)

type removeCommand struct{}

func (c *removeCommand) Name() string      { return "remove" }
func (c *removeCommand) Args() string      { return "<dependency> [dependency...]" }
func (c *removeCommand) ShortHelp() string { return "remove a dependency from the manifest" }
func (c *removeCommand) LongHelp() string {
	return "Remove each named dependency (matched after normalization) from xe.toml's deps table."
}
func (c *removeCommand) Register(fs *flag.FlagSet) {}

func (c *removeCommand) Run(ctx *Ctx, args []string) error {
	if len(args) == 0 {
		return &xerrors.InvalidInput{Subject: "remove", Reason: "at least one dependency name is required"}
	}
	for _, raw := range args {
		name := manifest.NormalizeDepName(raw)
		if _, ok := ctx.Manifest.Deps[name]; !ok {
			ctx.Out.Printf("%s is not a declared dependency, skipping\n", name)
			continue
		}
		delete(ctx.Manifest.Deps, name)
		ctx.Out.Printf("removed %s\n", name)
	}
	return manifest.Save(ctx.Path, ctx.Manifest)
}
