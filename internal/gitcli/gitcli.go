// Package gitcli shells out to the git binary and parses its porcelain
// output into the wire types. All diff content comes from git's own
// textual patch output; nothing is computed locally.
package gitcli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client runs git commands against repositories on local disk.
type Client struct {
	logger *slog.Logger
}

// New creates a git client. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{logger: logger}
}

// run executes git with the given arguments inside repo and returns
// its stdout.
func (c *Client) run(ctx context.Context, repo string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repo

	var stdout, stderr strings.Builder

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	c.logger.DebugContext(ctx, "git command finished",
		"args", args,
		"repo", repo,
		"stdout_bytes", stdout.Len(),
	)

	if runErr != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], runErr, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// Fetch runs `git fetch --all --prune` in the repository.
func (c *Client) Fetch(ctx context.Context, repo string) error {
	_, runErr := c.run(ctx, repo, "fetch", "--all", "--prune")

	return runErr
}

// FindRepos walks root and collects every directory containing a .git
// entry, without descending into found repositories.
func FindRepos(root string) ([]string, error) {
	var repos []string

	walkErr := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are skipped, not fatal.
			return filepath.SkipDir
		}

		if !entry.IsDir() {
			return nil
		}

		if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
			repos = append(repos, path)

			return filepath.SkipDir
		}

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	return repos, nil
}
