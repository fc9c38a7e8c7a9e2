package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/xeproj/xe/internal/model"
)

func newTestCAS(t *testing.T) *CAS {
	t.Helper()
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func serveBody(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStoreBlobFromURLHashesAndShards(t *testing.T) {
	c := newTestCAS(t)
	body := []byte("hello wheel")
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	srv := serveBody(t, body)

	path, err := c.StoreBlobFromURL(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("StoreBlobFromURL: %v", err)
	}
	want := filepath.Join(c.blobDir(), hash[:2], hash+".whl")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("content mismatch")
	}
}

func TestStoreBlobFromURLChecksumMismatchLeavesNoFile(t *testing.T) {
	c := newTestCAS(t)
	body := []byte("actual bytes")
	srv := serveBody(t, body)

	wrongHash := "0000000000000000000000000000000000000000000000000000000000000000"[:64]
	_, err := c.StoreBlobFromURL(context.Background(), srv.URL, wrongHash)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	target := c.BlobPath(wrongHash)
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Errorf("expected no file at %s after mismatch", target)
	}
	entries, _ := os.ReadDir(c.blobDir())
	for _, e := range entries {
		sub, _ := os.ReadDir(filepath.Join(c.blobDir(), e.Name()))
		if len(sub) != 0 {
			t.Errorf("expected no leftover files, found %v under %s", sub, e.Name())
		}
	}
}

func TestStoreBlobFromURLFastPathTrustsExistingFile(t *testing.T) {
	c := newTestCAS(t)
	hash := "abcd000000000000000000000000000000000000000000000000000000000000"[:64]
	path := c.BlobPath(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("preexisting"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := c.StoreBlobFromURL(context.Background(), "http://unreachable.invalid/should-not-be-hit", hash)
	if err != nil {
		t.Fatalf("StoreBlobFromURL: %v", err)
	}
	if got != path {
		t.Errorf("got %s, want %s", got, path)
	}
}

func TestSaveAndLoadSolution(t *testing.T) {
	c := newTestCAS(t)
	graph := &model.Graph{
		InterpreterVersion: "3.12",
		Requirements:       []string{"a", "b"},
		Packages: []model.Package{
			{Name: "b", Version: "1.0"},
			{Name: "a", Version: "2.0"},
		},
	}
	if err := c.SaveSolution("deadbeef", graph); err != nil {
		t.Fatalf("SaveSolution: %v", err)
	}

	loaded, err := c.LoadSolution("deadbeef")
	if err != nil {
		t.Fatalf("LoadSolution: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a cached graph, got nil")
	}
	if loaded.InterpreterVersion != graph.InterpreterVersion || len(loaded.Packages) != 2 {
		t.Errorf("loaded graph mismatch: %+v", loaded)
	}
}

func TestLoadSolutionAbsentIsNilNotError(t *testing.T) {
	c := newTestCAS(t)
	graph, err := c.LoadSolution("does-not-exist")
	if err != nil {
		t.Fatalf("LoadSolution: %v", err)
	}
	if graph != nil {
		t.Errorf("expected nil graph for cache miss, got %+v", graph)
	}
}
