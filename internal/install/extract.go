package install

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeproj/xe/internal/xerrors"
)

// extractArchive extracts the ZIP container at archivePath into siteDir.
// Every entry's declared path must resolve inside siteDir; absolute
// paths, ".." components, and symlink entries are refused before any
// file from the archive is created (spec.md §4.4 "Archive extraction",
// §8 "Archive safety"). Extraction is idempotent by file: existing
// files are overwritten via a truncating create.
func extractArchive(archivePath, siteDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &xerrors.CorruptArchive{Path: archivePath, Cause: err}
	}
	defer r.Close()

	for _, f := range r.File {
		if err := validateEntryPath(f.Name, siteDir); err != nil {
			return err
		}
		if isSymlinkEntry(f) {
			return &xerrors.InvalidInput{Subject: f.Name, Reason: "archive entry is a symlink, refusing to extract"}
		}
	}

	for _, f := range r.File {
		target := filepath.Join(siteDir, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &xerrors.IOFailed{Path: target, Cause: err}
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &xerrors.IOFailed{Path: filepath.Dir(target), Cause: err}
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return &xerrors.CorruptArchive{Path: target, Cause: err}
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode().Perm()|0o600)
	if err != nil {
		return &xerrors.IOFailed{Path: target, Cause: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return &xerrors.IOFailed{Path: target, Cause: err}
	}
	return nil
}

// validateEntryPath refuses absolute paths and ".." components, and
// confirms the joined path stays enclosed within siteDir.
func validateEntryPath(name, siteDir string) error {
	if name == "" {
		return &xerrors.InvalidInput{Subject: name, Reason: "empty archive entry path"}
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return &xerrors.InvalidInput{Subject: name, Reason: "archive entry has an absolute path"}
	}
	cleaned := filepath.Clean(filepath.FromSlash(name))
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return &xerrors.InvalidInput{Subject: name, Reason: "archive entry escapes the target directory"}
		}
	}
	target := filepath.Join(siteDir, cleaned)
	rel, err := filepath.Rel(siteDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &xerrors.InvalidInput{Subject: name, Reason: "archive entry escapes the target directory"}
	}
	return nil
}

func isSymlinkEntry(f *zip.File) bool {
	return f.Mode()&os.ModeSymlink != 0
}
