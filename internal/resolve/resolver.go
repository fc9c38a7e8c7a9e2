// Package resolve implements the Resolver: for a single requirement
// string, invoke the interpreter's native resolver in dry-run mode and
// parse the structured report it writes. Generalized from the
// teacher's monitoredCmd subprocess runner (cmd.go), applied here to
// the interpreter's package-install tool instead of a VCS binary.
package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/xeproj/xe/internal/model"
	"github.com/xeproj/xe/internal/xerrors"
)

// pipReport mirrors the resolver report format from spec.md §6: JSON
// with a top-level "install" array. Unknown fields are ignored.
type pipReport struct {
	Install []pipInstallItem `json:"install"`
}

type pipInstallItem struct {
	Metadata     pipMetadata     `json:"metadata"`
	DownloadInfo pipDownloadInfo `json:"download_info"`
}

type pipMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type pipDownloadInfo struct {
	URL         string          `json:"url"`
	ArchiveInfo pipArchiveInfo  `json:"archive_info"`
}

type pipArchiveInfo struct {
	Hashes map[string]string `json:"hashes"`
}

// Resolve invokes interpreterExe's native package-install tool in
// dry-run mode for requirement, parses the structured report it
// writes, and returns the flattened package records (spec.md §4.3).
func Resolve(ctx context.Context, requirement, interpreterExe string, log logrus.FieldLogger) ([]model.Package, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	reportFile, err := os.CreateTemp("", "xe-report-*.json")
	if err != nil {
		return nil, &xerrors.IOFailed{Path: os.TempDir(), Cause: err}
	}
	reportPath := reportFile.Name()
	reportFile.Close()
	os.Remove(reportPath) // pip refuses to write to an existing file for --report on some versions
	defer os.Remove(reportPath)

	cmd := exec.CommandContext(ctx, interpreterExe, "-m", "pip", "install", requirement,
		"--dry-run", "--report", reportPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithField("requirement", requirement).Debug("resolve: invoking dry-run install")
	if err := cmd.Run(); err != nil {
		return nil, &xerrors.ResolverFailed{
			Requirement: requirement,
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			Cause:       err,
		}
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, &xerrors.IOFailed{Path: reportPath, Cause: err}
	}

	sanitized := sanitizeJSON(data)
	var report pipReport
	if err := json.Unmarshal(sanitized, &report); err != nil {
		return nil, &xerrors.ResolverFailed{
			Requirement: requirement,
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			Cause:       err,
		}
	}

	packages := make([]model.Package, 0, len(report.Install))
	for _, item := range report.Install {
		packages = append(packages, model.Package{
			Name:         item.Metadata.Name,
			Version:      item.Metadata.Version,
			ArchiveURL:   item.DownloadInfo.URL,
			ExpectedHash: item.DownloadInfo.ArchiveInfo.Hashes["sha256"],
		})
	}
	return packages, nil
}

// sanitizeJSON discards any bytes preceding the first '{' or '[' (the
// resolver subprocess may emit progress noise before the JSON document)
// and round-trips through a parser so downstream consumers see clean
// bytes. Preserve this step; removing it regresses a real-world
// failure mode some resolver builds exhibit (spec.md §9).
func sanitizeJSON(data []byte) []byte {
	trimmed := trimJSONStart(data)
	if len(trimmed) == 0 {
		return data
	}
	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return trimmed
	}
	out, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return out
}

func trimJSONStart(data []byte) []byte {
	idx := bytes.IndexAny(data, "{[")
	if idx < 0 {
		return data
	}
	return data[idx:]
}
