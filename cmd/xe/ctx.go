package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/xeproj/xe/internal/cas"
	"github.com/xeproj/xe/internal/config"
	"github.com/xeproj/xe/internal/install"
	"github.com/xeproj/xe/internal/manifest"
	"github.com/xeproj/xe/internal/model"
	"github.com/xeproj/xe/internal/resolve"
	"github.com/xeproj/xe/internal/runtime"
	"github.com/xeproj/xe/internal/trace"
)

const defaultInterpreterVersionFallback = "3.12"

// Ctx bundles the core collaborators every subcommand needs, generalized
// from the teacher's dep.Ctx (working directory, loggers, path roots).
type Ctx struct {
	WorkingDir string
	XeHome     string
	Out, Err   *log.Logger

	Global   *config.Global
	Manifest *manifest.Manifest
	Path     string // manifest path

	CAS      *cas.CAS
	Trace    *trace.BoltCollector
	Selector *runtime.Selector
}

// NewCtx loads global config, the project manifest, and wires the CAS
// and runtime selector for workingDir.
func NewCtx(workingDir string, out, errl *log.Logger) (*Ctx, error) {
	xeHome, err := config.Home()
	if err != nil {
		return nil, err
	}

	global, err := config.Load(filepath.Join(xeHome, config.FileName))
	if err != nil {
		return nil, err
	}
	if global.DefaultInterpreterVersion == "" {
		global.DefaultInterpreterVersion = defaultInterpreterVersionFallback
	}

	m, path, err := manifest.LoadOrCreate(workingDir, filepath.Join(xeHome, "cache"))
	if err != nil {
		return nil, err
	}

	c, err := cas.New(m.Cache.GlobalDir, logrus.StandardLogger())
	if err != nil {
		return nil, err
	}

	var collector trace.Collector = trace.Discard
	boltCollector, err := trace.OpenBoltCollector(filepath.Join(xeHome, "trace", "spans.db"))
	if err == nil {
		collector = boltCollector
	}

	selector := runtime.New(xeHome, global.DefaultInterpreterVersion, nil, collector, logrus.StandardLogger())

	return &Ctx{
		WorkingDir: workingDir,
		XeHome:     xeHome,
		Out:        out,
		Err:        errl,
		Global:     global,
		Manifest:   m,
		Path:       path,
		CAS:        c,
		Trace:      boltCollector,
		Selector:   selector,
	}, nil
}

// Installer builds an Installer bound to interpreterExe, adapting
// resolve.Resolve (which also wants a logger) into install.Resolver.
func (ctx *Ctx) Installer(interpreterExe string) *install.Installer {
	resolver := install.ResolverFunc(func(c context.Context, requirement, exe string) ([]model.Package, error) {
		return resolve.Resolve(c, requirement, exe, logrus.StandardLogger())
	})
	var collector trace.Collector = trace.Discard
	if ctx.Trace != nil {
		collector = ctx.Trace
	}
	return install.New(ctx.CAS, resolver, interpreterExe, collector, logrus.StandardLogger())
}
