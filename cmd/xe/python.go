package main

import (
	"context"
	"flag"

	"github.com/xeproj/xe/internal/manifest"
)

// pythonCommand prints the interpreter executable the project would
// currently use, without running anything through it.
type pythonCommand struct{}

func (c *pythonCommand) Name() string      { return "python" }
func (c *pythonCommand) Args() string      { return "" }
func (c *pythonCommand) ShortHelp() string { return "print the project's interpreter path" }
func (c *pythonCommand) LongHelp() string {
	return "Ensure the project's runtime and print the interpreter executable it resolved to."
}
func (c *pythonCommand) Register(fs *flag.FlagSet) {}

func (c *pythonCommand) Run(ctx *Ctx, args []string) error {
	sel, mutated, err := ctx.Selector.EnsureRuntime(context.Background(), ctx.Manifest, ctx.WorkingDir)
	if err != nil {
		return err
	}
	if mutated {
		if err := manifest.Save(ctx.Path, ctx.Manifest); err != nil {
			return err
		}
	}
	ctx.Out.Println(sel.InterpreterExe)
	return nil
}
