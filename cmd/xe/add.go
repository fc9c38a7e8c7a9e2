package main

import (
	"flag"

	"github.com/xeproj/xe/internal/manifest"
	"github.com/xeproj/xe/internal/xerrors"
)

type addCommand struct{}

func (c *addCommand) Name() string      { return "add" }
func (c *addCommand) Args() string      { return "<requirement> [requirement...]" }
func (c *addCommand) ShortHelp() string { return "add a dependency to the manifest" }
func (c *addCommand) LongHelp() string {
	return "Parse each raw requirement string into a normalized dependency name and version specifier, then save them into xe.toml's deps table."
}
func (c *addCommand) Register(fs *flag.FlagSet) {}

func (c *addCommand) Run(ctx *Ctx, args []string) error {
	if len(args) == 0 {
		return &xerrors.InvalidInput{Subject: "add", Reason: "at least one requirement is required"}
	}
	for _, raw := range args {
		name, ok := manifest.RequirementToDepName(raw)
		if !ok {
			return &xerrors.InvalidInput{Subject: raw, Reason: "could not parse a dependency name out of this requirement"}
		}
		ctx.Manifest.Deps[name] = versionSpecOf(raw)
		ctx.Out.Printf("added %s (%s)\n", name, ctx.Manifest.Deps[name])
	}
	return manifest.Save(ctx.Path, ctx.Manifest)
}

// versionSpecOf extracts everything after the dependency name in a raw
// requirement string, defaulting to the wildcard when the requirement
// names no specifier at all (e.g. plain "requests").
func versionSpecOf(raw string) string {
	for i, r := range raw {
		switch r {
		case '=', '>', '<', '!', '~':
			if raw[i:] == "" {
				return "*"
			}
			return raw[i:]
		}
	}
	return "*"
}
