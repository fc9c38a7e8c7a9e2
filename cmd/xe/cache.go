package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/xeproj/xe/internal/xerrors"
)

// cacheCommand inspects CAS usage: read-only, no GC per spec.md's
// explicit non-goal ("It does not garbage-collect the CAS").
type cacheCommand struct{}

func (c *cacheCommand) Name() string      { return "cache" }
func (c *cacheCommand) Args() string      { return "<info>" }
func (c *cacheCommand) ShortHelp() string { return "inspect the content-addressed cache" }
func (c *cacheCommand) LongHelp() string {
	return "Report the CAS root, blob count, and memoized solution count. Never deletes anything."
}
func (c *cacheCommand) Register(fs *flag.FlagSet) {}

func (c *cacheCommand) Run(ctx *Ctx, args []string) error {
	if len(args) != 1 || args[0] != "info" {
		return &xerrors.InvalidInput{Subject: "cache", Reason: "usage: xe cache info"}
	}
	root := ctx.CAS.Root()
	blobs := countEntries(filepath.Join(root, "cas", "blobs"), true)
	solutions := countEntries(filepath.Join(root, "cas", "solutions"), false)

	ctx.Out.Printf("cache root: %s\n", root)
	ctx.Out.Printf("blobs: %d\n", blobs)
	ctx.Out.Printf("memoized solutions: %d\n", solutions)
	return nil
}

// countEntries counts files directly under dir, or (when nested is
// true) across dir's immediate subdirectories — the CAS blob store's
// two-level shard layout.
func countEntries(dir string, nested bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	if !nested {
		return len(entries)
	}
	total := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		total += len(sub)
	}
	return total
}
