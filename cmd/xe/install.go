package main

import (
	"context"
	"flag"
	"sort"

	"github.com/xeproj/xe/internal/manifest"
)

// installCommand implements the central operation from spec.md §2:
// Manifest Store → Runtime Selector → Resolver fan-out → CAS memoize →
// Fetcher per archive → idempotent extraction → manifest update with
// concrete resolved versions. Registered under both "install" and its
// alias "sync".
type installCommand struct{}

func (c *installCommand) Name() string      { return "install" }
func (c *installCommand) Args() string      { return "" }
func (c *installCommand) ShortHelp() string { return "install the project's dependencies (alias: sync)" }
func (c *installCommand) LongHelp() string {
	return "Ensure the project's interpreter and environment, resolve all declared dependencies, fetch and extract their archives, and record concrete resolved versions back into xe.toml."
}
func (c *installCommand) Register(fs *flag.FlagSet) {}

func (c *installCommand) Run(ctx *Ctx, args []string) error {
	background := context.Background()

	sel, mutated, err := ctx.Selector.EnsureRuntime(background, ctx.Manifest, ctx.WorkingDir)
	if err != nil {
		return err
	}

	requirements := make([]string, 0, len(ctx.Manifest.Deps))
	for name, spec := range ctx.Manifest.Deps {
		requirements = append(requirements, requirementString(name, spec))
	}
	sort.Strings(requirements)

	installer := ctx.Installer(sel.InterpreterExe)
	packages, err := installer.Install(background, ctx.Manifest.Runtime.Version, requirements, sel.SiteDir)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		name := manifest.NormalizeDepName(pkg.Name)
		if _, declared := ctx.Manifest.Deps[name]; declared {
			ctx.Manifest.Deps[name] = "==" + pkg.Version
		}
		ctx.Out.Printf("%s %s\n", pkg.Name, pkg.Version)
	}

	if mutated || len(packages) > 0 {
		return manifest.Save(ctx.Path, ctx.Manifest)
	}
	return nil
}

func requirementString(name, spec string) string {
	if spec == "" || spec == "*" {
		return name
	}
	return name + spec
}
