// Package upload publishes a local results directory to remote storage.
package upload

import (
	"context"
	"fmt"
	"path/filepath"
)

// Uploader uploads a local results directory to remote storage.
type Uploader interface {
	// EnsureTarget verifies the remote destination exists and is
	// writable before the upload loop starts, creating it when the
	// backend supports that.
	EnsureTarget(ctx context.Context) error

	// Upload pushes every regular file under localDir to the remote
	// destination, preserving working-directory-relative paths. The
	// first failing file aborts the remaining uploads.
	Upload(ctx context.Context, localDir string) error
}

// CommitPrefix builds the run-wide commit message prefix from an
// optional revision identifier.
func CommitPrefix(commit string) string {
	if commit == "" {
		return "update"
	}

	return fmt.Sprintf("Update from github (commit id) %s", commit)
}

// repoPrefix returns the remote path prefix for files under localDir.
// A relative directory keeps its cleaned path, so "./results" maps
// files to "results/...", matching their paths relative to the working
// directory. An absolute directory contributes only its basename.
func repoPrefix(localDir string) string {
	clean := filepath.Clean(localDir)
	if filepath.IsAbs(clean) {
		return filepath.Base(clean)
	}

	return filepath.ToSlash(clean)
}
