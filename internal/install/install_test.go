package install

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/xeproj/xe/internal/cas"
	"github.com/xeproj/xe/internal/model"
	"github.com/xeproj/xe/internal/test"
)

// fakeResolver returns a canned package list per requirement and counts
// invocations, the way the teacher's bridge.go substitutes a fake
// SourceManager to observe solver call counts.
type fakeResolver struct {
	calls   int32
	byReq   map[string][]model.Package
	archive string // shared archive URL/hash wired to a test HTTP server
}

func (f *fakeResolver) Resolve(_ context.Context, requirement, _ string) ([]model.Package, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.byReq[requirement], nil
}

func (f *fakeResolver) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

// buildZip builds an in-memory ZIP with a single dist-info directory
// marker entry and a trivial module file, returning its bytes.
func buildZip(t *testing.T, distInfoName string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if _, err := w.Create(distInfoName + "/METADATA"); err != nil {
		t.Fatal(err)
	}
	fw, err := w.Create("pkgmod.py")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("# module\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hashOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func TestInstallEmptyRequirementsIsNoop(t *testing.T) {
	c, err := cas.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	resolver := &fakeResolver{byReq: map[string][]model.Package{}}
	in := New(c, resolver, "python3.12", nil, nil)

	pkgs, err := in.Install(context.Background(), "3.12", nil, t.TempDir())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(pkgs) != 0 {
		t.Errorf("expected no packages, got %v", pkgs)
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver should not be called for an empty requirement set")
	}
}

func TestInstallCachedSolveSkipsResolver(t *testing.T) {
	casRoot := t.TempDir()
	c, err := cas.New(casRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	body := buildZip(t, "a-1.0.dist-info")
	hash := hashOf(body)
	srv := serveBytes(t, body)

	resolver := &fakeResolver{byReq: map[string][]model.Package{
		"a==1.0": {{Name: "a", Version: "1.0", ArchiveURL: srv.URL, ExpectedHash: hash}},
		"b":      {{Name: "b", Version: "2.0", ArchiveURL: "", ExpectedHash: ""}},
	}}
	in := New(c, resolver, "python3.12", nil, nil)

	site1 := t.TempDir()
	if _, err := in.Install(context.Background(), "3.12", []string{"a==1.0", "b"}, site1); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if resolver.callCount() != 2 {
		t.Fatalf("expected 2 resolver calls after first install, got %d", resolver.callCount())
	}

	site2 := t.TempDir()
	if _, err := in.Install(context.Background(), "3.12", []string{"a==1.0", "b"}, site2); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if resolver.callCount() != 2 {
		t.Errorf("second install with the same solve key re-invoked the resolver: calls = %d", resolver.callCount())
	}
}

func TestInstallBlobDedupAcrossProjects(t *testing.T) {
	casRoot := t.TempDir()
	c, err := cas.New(casRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	body := buildZip(t, "a-1.0.dist-info")
	hash := hashOf(body)
	srv := serveBytes(t, body)

	resolver := &fakeResolver{byReq: map[string][]model.Package{
		"a==1.0": {{Name: "a", Version: "1.0", ArchiveURL: srv.URL, ExpectedHash: hash}},
	}}
	in := New(c, resolver, "python3.12", nil, nil)

	site1 := t.TempDir()
	if _, err := in.Install(context.Background(), "3.12", []string{"a==1.0"}, site1); err != nil {
		t.Fatalf("project 1 install: %v", err)
	}
	countBlobFiles := func() int {
		n := 0
		entries, _ := os.ReadDir(filepath.Join(casRoot, "cas", "blobs"))
		for _, e := range entries {
			sub, _ := os.ReadDir(filepath.Join(casRoot, "cas", "blobs", e.Name()))
			n += len(sub)
		}
		return n
	}
	before := countBlobFiles()

	// Second project: different solve key (project-local manifest is out
	// of scope here), same package/version — must reuse the blob.
	resolver2 := &fakeResolver{byReq: map[string][]model.Package{
		"a==1.0": {{Name: "a", Version: "1.0", ArchiveURL: srv.URL, ExpectedHash: hash}},
	}}
	in2 := New(c, resolver2, "python3.12", nil, nil)
	site2 := t.TempDir()
	if _, err := in2.Install(context.Background(), "3.11", []string{"a==1.0"}, site2); err != nil {
		t.Fatalf("project 2 install: %v", err)
	}
	after := countBlobFiles()
	if after != before {
		t.Errorf("expected zero new blob files for project 2, before=%d after=%d", before, after)
	}
}

func TestInstallChecksumMismatchFails(t *testing.T) {
	c, err := cas.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	body := buildZip(t, "a-1.0.dist-info")
	srv := serveBytes(t, body)

	resolver := &fakeResolver{byReq: map[string][]model.Package{
		"a==1.0": {{Name: "a", Version: "1.0", ArchiveURL: srv.URL, ExpectedHash: "0000000000000000000000000000000000000000000000000000000000000000"[:64]}},
	}}
	in := New(c, resolver, "python3.12", nil, nil)

	_, err = in.Install(context.Background(), "3.12", []string{"a==1.0"}, t.TempDir())
	if err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}

func TestInstallIdempotentReExtractSkipsInstalled(t *testing.T) {
	c, err := cas.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	body := buildZip(t, "a-1.0.dist-info")
	hash := hashOf(body)
	srv := serveBytes(t, body)

	resolver := &fakeResolver{byReq: map[string][]model.Package{
		"a==1.0": {{Name: "a", Version: "1.0", ArchiveURL: srv.URL, ExpectedHash: hash}},
	}}
	in := New(c, resolver, "python3.12", nil, nil)
	site := t.TempDir()

	if _, err := in.Install(context.Background(), "3.12", []string{"a==1.0"}, site); err != nil {
		t.Fatalf("first install: %v", err)
	}

	modFile := filepath.Join(site, "pkgmod.py")
	info, err := os.Stat(modFile)
	if err != nil {
		t.Fatalf("expected extracted file: %v", err)
	}
	modTimeBefore := info.ModTime()

	if _, err := in.Install(context.Background(), "3.12", []string{"a==1.0"}, site); err != nil {
		t.Fatalf("second install: %v", err)
	}
	info2, err := os.Stat(modFile)
	if err != nil {
		t.Fatalf("file disappeared: %v", err)
	}
	if !info2.ModTime().Equal(modTimeBefore) {
		t.Errorf("file was rewritten on a second install that should have skipped an already-installed package")
	}
}

func TestInstallVersionBumpReExtracts(t *testing.T) {
	c, err := cas.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	site := t.TempDir()

	// Simulate a package already installed at the old version, as if a
	// prior install (or a hand-placed wheel) had left it there.
	oldDistInfo := filepath.Join(site, "a-1.0.dist-info")
	if err := os.MkdirAll(oldDistInfo, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(oldDistInfo, "METADATA"), []byte("Name: a\nVersion: 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	body := buildZip(t, "a-2.0.dist-info")
	hash := hashOf(body)
	srv := serveBytes(t, body)

	resolver := &fakeResolver{byReq: map[string][]model.Package{
		"a==2.0": {{Name: "a", Version: "2.0", ArchiveURL: srv.URL, ExpectedHash: hash}},
	}}
	in := New(c, resolver, "python3.12", nil, nil)

	if _, err := in.Install(context.Background(), "3.12", []string{"a==2.0"}, site); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(site, "a-2.0.dist-info")); err != nil {
		t.Errorf("expected a-2.0.dist-info to be extracted, a version bump must not be skipped as already-installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(site, "pkgmod.py")); err != nil {
		t.Errorf("expected the new version's module file to be extracted: %v", err)
	}
}

func TestExtractArchiveRefusesPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if _, err := w.Create("../../etc/passwd"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(t.TempDir(), "evil.whl")
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	site := t.TempDir()
	if err := extractArchive(archivePath, site); err == nil {
		t.Fatal("expected extraction to refuse a path-traversal entry")
	}
	entries, _ := os.ReadDir(site)
	if len(entries) != 0 {
		t.Errorf("expected no files created before the unsafe entry was rejected, found %v", entries)
	}
}

func TestMergePackagesDedupesByNameAndVersion(t *testing.T) {
	results := [][]model.Package{
		{{Name: "A", Version: "1.0", ArchiveURL: "u1"}, {Name: "b", Version: "2.0"}},
		{{Name: "a", Version: "1.0", ArchiveURL: "u2"}}, // same identity+version as A==1.0, last wins
		{{Name: "b", Version: "3.0"}},                   // same name, different version: distinct entry
	}
	got := mergePackages(results)
	want := []model.Package{
		{Name: "a", Version: "1.0", ArchiveURL: "u2"},
		{Name: "b", Version: "2.0"},
		{Name: "b", Version: "3.0"},
	}
	if diff, equal := test.DiffValues(got, want); !equal {
		t.Errorf("mergePackages mismatch:\n%s", diff)
	}
}

func TestSolveKeyStableUnderRequirementOrder(t *testing.T) {
	norm1 := normalizeRequirements([]string{"a==1.0", "b"})
	norm2 := normalizeRequirements([]string{"b", "  a==1.0  "})
	if solveKey("3.12", norm1) != solveKey("3.12", norm2) {
		t.Error("solve key should be invariant under requirement order and whitespace")
	}
}
