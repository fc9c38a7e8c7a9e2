// Package install implements the Installer: the orchestrator that
// normalizes a requirement set, consults the CAS for a memoized
// resolution graph, fans resolution out in parallel on a miss, fetches
// each distinct archive through the CAS, and materializes it
// idempotently into a site directory (spec.md §4.4). Parallel fan-out
// uses golang.org/x/sync/errgroup, the idiomatic replacement for the
// teacher's ad hoc sync.WaitGroup-plus-error-channel fan-out in
// source_manager.go — errgroup's context-cancellation-on-first-error is
// exactly the all-or-nothing semantic the spec requires.
package install

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xeproj/xe/internal/cas"
	"github.com/xeproj/xe/internal/model"
	"github.com/xeproj/xe/internal/trace"
	"github.com/xeproj/xe/internal/xerrors"
)

// Resolver is the subset of resolve.Resolve the installer depends on,
// factored into an interface so tests can substitute a call-counting
// fake (spec.md §8 scenario 2), the way the teacher's bridge.go
// substitutes a fake SourceManager for solver tests.
type Resolver interface {
	Resolve(ctx context.Context, requirement, interpreterExe string) ([]model.Package, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, requirement, interpreterExe string) ([]model.Package, error)

func (f ResolverFunc) Resolve(ctx context.Context, requirement, interpreterExe string) ([]model.Package, error) {
	return f(ctx, requirement, interpreterExe)
}

// Installer ties a CAS and Resolver together to run installs against a
// given interpreter executable.
type Installer struct {
	CAS            *cas.CAS
	Resolver       Resolver
	InterpreterExe string
	Trace          trace.Collector
	Log            logrus.FieldLogger
}

// New builds an Installer. A nil trace collector defaults to
// trace.Discard; a nil logger defaults to logrus's standard logger.
func New(c *cas.CAS, r Resolver, interpreterExe string, collector trace.Collector, log logrus.FieldLogger) *Installer {
	if collector == nil {
		collector = trace.Discard
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Installer{CAS: c, Resolver: r, InterpreterExe: interpreterExe, Trace: collector, Log: log}
}

// Install runs the seven-step install pipeline from spec.md §4.4 and
// returns the resolved package list sorted by name.
func (in *Installer) Install(ctx context.Context, interpreterVersion string, requirements []string, siteDir string) ([]model.Package, error) {
	span := trace.Start(in.Trace, "install.total", map[string]interface{}{"site_dir": siteDir})
	defer span.Stop()

	normalized := normalizeRequirements(requirements)
	if len(normalized) == 0 {
		return nil, nil
	}

	key := solveKey(interpreterVersion, normalized)
	graph, err := in.loadOrResolve(ctx, key, interpreterVersion, normalized)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, &xerrors.IOFailed{Path: siteDir, Cause: err}
	}

	installed, err := scanInstalledSet(siteDir)
	if err != nil {
		return nil, err
	}

	if err := in.materialize(ctx, graph.Packages, siteDir, installed); err != nil {
		return nil, err
	}

	result := make([]model.Package, len(graph.Packages))
	copy(result, graph.Packages)
	model.SortPackages(result)
	return result, nil
}

// loadOrResolve implements spec.md §4.4 steps 2-3: consult the memoized
// graph, or fan resolution out in parallel across normalized
// requirements and persist the merged result.
func (in *Installer) loadOrResolve(ctx context.Context, key, interpreterVersion string, normalized []string) (*model.Graph, error) {
	cached, err := in.CAS.LoadSolution(key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		in.Log.WithField("solve_key", key).Debug("install: solve key cache hit")
		return cached, nil
	}

	span := trace.Start(in.Trace, "install.resolve", map[string]interface{}{"requirements": len(normalized)})
	defer span.Stop()

	g, groupCtx := errgroup.WithContext(ctx)
	results := make([][]model.Package, len(normalized))
	for i, req := range normalized {
		i, req := i, req
		g.Go(func() error {
			pkgs, err := in.Resolver.Resolve(groupCtx, req, in.InterpreterExe)
			if err != nil {
				return err
			}
			results[i] = pkgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergePackages(results)
	graph := &model.Graph{
		InterpreterVersion: interpreterVersion,
		Requirements:       normalized,
		Packages:           merged,
	}
	if err := in.CAS.SaveSolution(key, graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// mergePackages flattens per-requirement results, deduplicating by
// lower(name)+"=="+version; later wins, per spec.md §4.4 step 3 (the
// choice is immaterial since distinct inputs yielding the same
// name+version must agree by definition). The merged list is sorted.
func mergePackages(results [][]model.Package) []model.Package {
	byKey := make(map[string]model.Package)
	order := make([]string, 0)
	for _, pkgs := range results {
		for _, p := range pkgs {
			k := packageIdentityKey(p.Name, p.Version)
			if _, ok := byKey[k]; !ok {
				order = append(order, k)
			}
			byKey[k] = p
		}
	}
	merged := make([]model.Package, 0, len(order))
	for _, k := range order {
		merged = append(merged, byKey[k])
	}
	model.SortPackages(merged)
	return merged
}

// materialize implements spec.md §4.4 step 6: in parallel, for each
// package sorted by name, skip if already installed or undownloadable,
// otherwise fetch its blob through the CAS and extract it, recording
// the identity under the shared mutex.
func (in *Installer) materialize(ctx context.Context, packages []model.Package, siteDir string, installed *installedSet) error {
	sorted := make([]model.Package, len(packages))
	copy(sorted, packages)
	model.SortPackages(sorted)

	span := trace.Start(in.Trace, "install.extract", map[string]interface{}{"packages": len(sorted)})
	defer span.Stop()

	g, groupCtx := errgroup.WithContext(ctx)
	for _, pkg := range sorted {
		pkg := pkg
		g.Go(func() error {
			return in.materializeOne(groupCtx, pkg, siteDir, installed)
		})
	}
	return g.Wait()
}

func (in *Installer) materializeOne(ctx context.Context, pkg model.Package, siteDir string, installed *installedSet) error {
	identity := packageIdentityKey(pkg.Name, pkg.Version)
	if installed.contains(identity) {
		in.Log.WithField("package", pkg.Name).Debug("install: already installed, skipping")
		return nil
	}
	if pkg.ArchiveURL == "" {
		in.Log.WithField("package", pkg.Name).Debug("install: no archive url, skipping")
		return nil
	}

	blobPath, err := in.CAS.StoreBlobFromURL(ctx, pkg.ArchiveURL, pkg.ExpectedHash)
	if err != nil {
		in.Log.WithError(err).WithField("package", pkg.Name).Error("install: failed to fetch archive")
		return err
	}

	if err := extractArchive(blobPath, siteDir); err != nil {
		in.Log.WithError(err).WithField("package", pkg.Name).Error("install: failed to extract archive")
		return err
	}

	installed.checkAndInsert(identity)
	return nil
}
