// Package fetch implements the Fetcher: a streaming HTTP GET used both
// to ingest archives into the CAS (with hashing) and to download
// installer/bootstrap payloads with no hash check. Generalized from the
// teacher's cmd abstraction (cmd.go) for running external processes,
// applied here to outbound HTTP instead of subprocess invocation, and
// composes caller and per-call timeout contexts via
// github.com/sdboyer/constext the way the teacher composes multiple
// cancellation sources inside gps.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"

	"github.com/xeproj/xe/internal/xerrors"
)

// Result is the outcome of a hashed streaming download: the temp file
// path it was written to, and the content hash actually observed.
type Result struct {
	TempPath   string
	ActualHash string
}

// StreamToTemp performs a GET against url, writing the body to a
// unique temp file under dir while hashing it with SHA-256. It does not
// rename into place or compare against an expected hash; callers (the
// CAS) own that decision. timeout bounds the whole request.
func StreamToTemp(ctx context.Context, url, dir, prefix string, timeout time.Duration) (*Result, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cctx, cancel2 := constext.Cons(cctx, ctx)
	defer cancel2()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &xerrors.FetchFailed{URL: url, Cause: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &xerrors.FetchFailed{URL: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &xerrors.FetchFailed{URL: url, Cause: errors.Errorf("unexpected status %s", resp.Status)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &xerrors.IOFailed{Path: dir, Cause: err}
	}
	tmp, err := os.CreateTemp(dir, prefix+"-*.tmp")
	if err != nil {
		return nil, &xerrors.IOFailed{Path: dir, Cause: err}
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, &xerrors.FetchFailed{URL: url, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, &xerrors.IOFailed{Path: tmpPath, Cause: err}
	}

	return &Result{TempPath: tmpPath, ActualHash: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// DownloadFile downloads url with no hash check and a 3-minute timeout,
// writing the body to a uniquely named temp file with the given prefix
// and extension. Used for the interpreter installer and bootstrap
// script payloads (spec.md §4.2).
func DownloadFile(ctx context.Context, url, prefix, ext string) (string, error) {
	res, err := StreamToTemp(ctx, url, os.TempDir(), prefix, 3*time.Minute)
	if err != nil {
		return "", err
	}
	if ext == "" {
		return res.TempPath, nil
	}
	renamed := res.TempPath + ext
	if err := os.Rename(res.TempPath, renamed); err != nil {
		return res.TempPath, nil
	}
	return renamed, nil
}

// TempDirFor returns a stable scratch directory under root for
// in-progress downloads, e.g. "<cas_root>/tmp".
func TempDirFor(root string) string {
	return filepath.Join(root, "tmp")
}
