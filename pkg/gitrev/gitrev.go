// Package gitrev resolves the short revision of the local git checkout.
package gitrev

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ShortCommit returns the abbreviated commit hash of HEAD in dir. An
// empty dir means the current working directory. Failures (git not
// installed, dir not a repository) are returned as errors; callers are
// expected to treat them as non-fatal.
func ShortCommit(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("running git rev-parse: %w", err)
	}

	commit := firstLine(string(out))
	if commit == "" {
		return "", fmt.Errorf("git rev-parse returned no output")
	}

	return commit, nil
}

// firstLine returns the first line of s, trimmed of surrounding
// whitespace.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return strings.TrimSpace(line)
}
