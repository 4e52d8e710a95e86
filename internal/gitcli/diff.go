package gitcli

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// hunkHeaderRe extracts line ranges from headers like "@@ -10,7 +12,9 @@".
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))?`)

// Diff runs `git diff` between two commits and parses the patch. A
// non-nil paths slice limits the diff to those paths.
func (c *Client) Diff(
	ctx context.Context,
	repo, commitA, commitB string,
	flags protocol.GitFlags,
	paths []string,
) (protocol.Diff, error) {
	args := diffArgs("diff", flags)
	args = append(args, commitA, commitB)
	args = appendPathspec(args, paths)

	out, runErr := c.run(ctx, repo, args...)
	if runErr != nil {
		return protocol.Diff{}, runErr
	}

	diff := ParsePatch(out)
	diff.FromCommit = commitA
	diff.ToCommit = commitB

	return diff, nil
}

// ShowCommit runs `git show` for a single commit and parses the patch.
// Both ends of the returned diff are tagged with the commit itself.
func (c *Client) ShowCommit(
	ctx context.Context,
	repo, commit string,
	flags protocol.GitFlags,
	paths []string,
) (protocol.Diff, error) {
	args := diffArgs("show", flags)
	args = append(args, "--pretty=format:", commit)
	args = appendPathspec(args, paths)

	out, runErr := c.run(ctx, repo, args...)
	if runErr != nil {
		return protocol.Diff{}, runErr
	}

	diff := ParsePatch(out)
	diff.FromCommit = commit
	diff.ToCommit = commit

	return diff, nil
}

func diffArgs(subcommand string, flags protocol.GitFlags) []string {
	args := []string{
		subcommand,
		"--patch",
		"--no-color",
		"--find-renames",
		"--find-copies",
		fmt.Sprintf("--unified=%d", flags.ContextLines),
		fmt.Sprintf("--diff-algorithm=%s", flags.DiffAlgo),
	}

	if flags.IgnoreAllSpace {
		args = append(args, "--ignore-all-space")
	}

	return args
}

func appendPathspec(args, paths []string) []string {
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	return args
}

// ParsePatch parses `git diff --patch` output into files and hunks.
// The commit fields of the returned diff are left for the caller to
// fill in; git does not echo them back.
func ParsePatch(output string) protocol.Diff {
	var (
		diff        protocol.Diff
		currentFile *protocol.DiffFile
		currentHunk *protocol.DiffHunk
	)

	flushHunk := func() {
		if currentHunk != nil && currentFile != nil {
			currentFile.Hunks = append(currentFile.Hunks, *currentHunk)
		}

		currentHunk = nil
	}

	flushFile := func() {
		flushHunk()

		if currentFile != nil {
			diff.Files = append(diff.Files, *currentFile)
		}

		currentFile = nil
	}

	for _, line := range strings.Split(strings.TrimSuffix(output, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			flushFile()

			currentFile = &protocol.DiffFile{ChangeType: protocol.ChangeModified}
		case strings.HasPrefix(line, "new file mode"):
			if currentFile != nil {
				currentFile.ChangeType = protocol.ChangeAdded
			}
		case strings.HasPrefix(line, "deleted file mode"):
			if currentFile != nil {
				currentFile.ChangeType = protocol.ChangeDeleted
			}
		case strings.HasPrefix(line, "rename to "):
			if currentFile != nil {
				currentFile.ChangeType = protocol.ChangeRenamed
			}
		case strings.HasPrefix(line, "copy to "):
			if currentFile != nil {
				currentFile.ChangeType = protocol.ChangeCopied
			}
		case strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ "):
			if currentFile != nil && currentFile.FilePath == "" {
				if path, ok := strings.CutPrefix(line, "+++ b/"); ok {
					currentFile.FilePath = path
				} else if path, ok := strings.CutPrefix(line, "--- a/"); ok {
					currentFile.FilePath = path
				}
			}
		case strings.HasPrefix(line, "@@"):
			flushHunk()

			hunk, headerErr := parseHunkHeader(strings.TrimRight(line, " "))
			if headerErr == nil {
				currentHunk = &hunk
			}
		default:
			if currentHunk == nil {
				continue
			}

			currentHunk.Content = append(currentHunk.Content, line)

			if strings.HasPrefix(line, "+") {
				currentHunk.AddedLines++
			} else if strings.HasPrefix(line, "-") {
				currentHunk.RemovedLines++
			}
		}
	}

	flushFile()

	return diff
}

// parseHunkHeader extracts the four line-range numbers of a hunk
// header. Omitted counts default to 1, per the unified diff format.
func parseHunkHeader(header string) (protocol.DiffHunk, error) {
	match := hunkHeaderRe.FindStringSubmatch(header)
	if match == nil {
		return protocol.DiffHunk{}, fmt.Errorf("invalid hunk header: %q", header)
	}

	atoiOr := func(s string, fallback int) int {
		if s == "" {
			return fallback
		}

		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return fallback
		}

		return n
	}

	return protocol.DiffHunk{
		Header:   header,
		OldStart: atoiOr(match[1], 0),
		OldCount: atoiOr(match[2], 1),
		NewStart: atoiOr(match[3], 0),
		NewCount: atoiOr(match[4], 1),
	}, nil
}
