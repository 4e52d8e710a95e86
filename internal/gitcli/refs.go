package gitcli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// Sentinel separators for git log records. Chosen to never occur in
// commit messages.
const (
	logRecordSep = "<<<><<>>>"
	logFieldSep  = "><><><<>>"
)

// gitISODate is the layout of `git log --date=iso` timestamps.
const gitISODate = "2006-01-02 15:04:05 -0700"

// Branches runs `git branch --list --all` and parses its output.
func (c *Client) Branches(ctx context.Context, repo string) ([]protocol.Branch, error) {
	out, runErr := c.run(ctx, repo, "branch", "--list", "--all", "--no-color")
	if runErr != nil {
		return nil, runErr
	}

	return ParseBranches(out), nil
}

// CurrentBranch returns the branch marked current by git.
func (c *Client) CurrentBranch(ctx context.Context, repo string) (protocol.Branch, error) {
	branches, branchesErr := c.Branches(ctx, repo)
	if branchesErr != nil {
		return protocol.Branch{}, branchesErr
	}

	for _, branch := range branches {
		if branch.IsCurrent {
			return branch, nil
		}
	}

	return protocol.Branch{}, fmt.Errorf("no current branch in %s", repo)
}

// Tags runs `git tag --list` and parses its output.
func (c *Client) Tags(ctx context.Context, repo string) ([]protocol.Tag, error) {
	out, runErr := c.run(ctx, repo, "tag", "--list", "--no-color")
	if runErr != nil {
		return nil, runErr
	}

	return ParseTags(out), nil
}

// Log returns up to maxCount commits of the given branch, newest
// first. An empty branch means HEAD.
func (c *Client) Log(ctx context.Context, repo, branch string, maxCount int) ([]protocol.Commit, error) {
	format := logRecordSep + "%h" + logFieldSep + "%an" + logFieldSep + "%ad" + logFieldSep + "%s" + logFieldSep + "%b"

	args := []string{
		"log",
		fmt.Sprintf("--max-count=%d", maxCount),
		"--pretty=format:" + format,
		"--date=iso",
	}

	if branch != "" {
		args = append(args, branch)
	}

	out, runErr := c.run(ctx, repo, args...)
	if runErr != nil {
		return nil, runErr
	}

	return ParseLog(out)
}

// ParseBranches parses `git branch --list --all` output. The current
// branch is starred, remote branches carry a "remotes/" prefix, and
// symbolic refs read "name -> target".
func ParseBranches(output string) []protocol.Branch {
	var branches []protocol.Branch

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		isCurrent := strings.HasPrefix(line, "*")
		if isCurrent {
			line = strings.TrimSpace(line[1:])
		}

		namePart, target, isSymbolic := strings.Cut(line, "->")

		branch := protocol.Branch{IsCurrent: isCurrent}

		namePart = strings.TrimSpace(namePart)
		branch.IsRemote = strings.HasPrefix(namePart, "remotes/")
		branch.Name = strings.TrimPrefix(namePart, "remotes/")

		if branch.IsRemote {
			if parts := strings.SplitN(namePart, "/", 3); len(parts) > 1 {
				branch.Remote = parts[1]
			}
		}

		if isSymbolic {
			branch.PointsTo = strings.TrimSpace(target)
		}

		branches = append(branches, branch)
	}

	return branches
}

// ParseTags parses `git tag --list` output, one tag per line with an
// optional message after the first run of whitespace.
func ParseTags(output string) []protocol.Tag {
	var tags []protocol.Tag

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		tag := protocol.Tag{Name: fields[0]}

		if len(fields) > 1 {
			tag.Message = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		}

		tags = append(tags, tag)
	}

	return tags
}

// ParseLog parses sentinel-separated `git log --pretty=format:` output.
func ParseLog(output string) ([]protocol.Commit, error) {
	var commits []protocol.Commit

	for _, record := range strings.Split(strings.TrimSpace(output), logRecordSep) {
		if record == "" {
			continue
		}

		fields := strings.Split(record, logFieldSep)
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed log record: %q", record)
		}

		date, dateErr := time.Parse(gitISODate, strings.TrimSpace(fields[2]))
		if dateErr != nil {
			return nil, fmt.Errorf("parse commit date: %w", dateErr)
		}

		commits = append(commits, protocol.Commit{
			ShortHash: strings.TrimSpace(fields[0]),
			Author:    strings.TrimSpace(fields[1]),
			Date:      date,
			Summary:   strings.TrimSpace(fields[3]),
			Body:      strings.TrimSpace(fields[4]),
		})
	}

	return commits, nil
}
