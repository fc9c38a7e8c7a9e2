// Package cas implements the content-addressed store: immutable archive
// blobs keyed by the hex of their SHA-256 content hash, and serialized
// resolution graphs keyed by solve key. Generalized from the teacher's
// atomic-rename publish discipline (fs.go's renameWithFallback) and its
// BoltDB-backed source cache's directory layout conventions
// (source_cache_bolt.go's sourceCachePath), adapted here to a plain
// sharded-file layout because spec.md §3/§6 fixes that exact on-disk
// shape.
package cas

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/theckman/go-flock"

	"github.com/xeproj/xe/internal/model"
)

// CAS is the content-addressed store rooted at a directory, normally
// the value of a project's cache.global_dir.
type CAS struct {
	root string
	log  logrus.FieldLogger
}

// New creates the CAS's blob and solution directories under root if
// they do not already exist.
func New(root string, log logrus.FieldLogger) (*CAS, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &CAS{root: root, log: log}
	if err := os.MkdirAll(c.blobDir(), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create CAS blob directory")
	}
	if err := os.MkdirAll(c.solutionDir(), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create CAS solution directory")
	}
	return c, nil
}

// Root returns the CAS root directory.
func (c *CAS) Root() string { return c.root }

func (c *CAS) blobDir() string     { return filepath.Join(c.root, "cas", "blobs") }
func (c *CAS) solutionDir() string { return filepath.Join(c.root, "cas", "solutions") }

// BlobPath computes the sharded path for a hex content hash:
// <root>/cas/blobs/<first-two-hex>/<full-hex>.whl.
func (c *CAS) BlobPath(hexHash string) string {
	prefix := "00"
	if len(hexHash) >= 2 {
		prefix = hexHash[:2]
	}
	return filepath.Join(c.blobDir(), prefix, hexHash+".whl")
}

func (c *CAS) solutionPath(solveKey string) string {
	return filepath.Join(c.solutionDir(), solveKey+".json")
}

// SaveSolution writes graph as JSON to solutions/<solveKey>.json,
// creating parent directories as needed. Writers always produce the
// same bytes for the same solve key, so overwriting an existing file
// is harmless (spec.md §3 Lifecycles).
func (c *CAS) SaveSolution(solveKey string, graph *model.Graph) error {
	path := c.solutionPath(solveKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	data, err := json.Marshal(graph)
	if err != nil {
		return errors.Wrap(err, "failed to encode resolution graph")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	c.log.WithField("solve_key", solveKey).Debug("cas: saved solution")
	return nil
}

// LoadSolution returns the parsed graph for solveKey, or (nil, nil) if
// no such solution has been memoized yet. Parse errors propagate.
func (c *CAS) LoadSolution(solveKey string) (*model.Graph, error) {
	path := c.solutionPath(solveKey)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	graph := &model.Graph{}
	if err := json.Unmarshal(data, graph); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	c.log.WithField("solve_key", solveKey).Debug("cas: memoized solution hit")
	return graph, nil
}

// lockShardDir advisory-locks the directory a blob will be published
// into, so two processes racing to MkdirAll the same shard directory
// observe a serialized, not torn, creation. Uses theckman/go-flock the
// way the teacher uses advisory file locks to guard cross-process
// writers to a shared cache.
func lockShardDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}
	lockPath := dir + ".lock"
	fl := flock.NewFlock(lockPath)
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return fl, nil
}
