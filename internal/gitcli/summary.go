package gitcli

import (
	"context"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// CompactSummary runs `git diff --compact-summary` between two
// commits. With commitB empty the commit is compared against its
// first parent.
func (c *Client) CompactSummary(ctx context.Context, repo, commitA, commitB string) (protocol.DiffSummary, error) {
	if commitB == "" {
		commitB = commitA
		commitA = commitB + "^"
	}

	out, runErr := c.run(ctx, repo, "diff", "--compact-summary", commitA, commitB)
	if runErr != nil {
		return protocol.DiffSummary{}, runErr
	}

	summary := ParseCompactSummary(out)
	summary.CommitA = commitA
	summary.CommitB = commitB

	return summary, nil
}

// ParseCompactSummary parses `git diff --compact-summary` output into
// file change rows and totals. The commit fields are left for the
// caller.
func ParseCompactSummary(output string) protocol.DiffSummary {
	var summary protocol.DiffSummary

	for _, line := range strings.Split(output, "\n") {
		change, ok := parseCompactSummaryLine(line)
		if !ok {
			continue
		}

		summary.Files = append(summary.Files, change)

		if change.Additions != nil {
			summary.TotalAdditions += *change.Additions
		}

		if change.Deletions != nil {
			summary.TotalDeletions += *change.Deletions
		}
	}

	summary.TotalFilesChanged = len(summary.Files)

	return summary
}

// parseCompactSummaryLine parses one row, e.g.
//
//	file.txt              | 10 +++++-----
//	new_file.py (new)     | 25 +++++++++++++++++++++++++
//	old_file.txt (gone)   |  5 -----
//	renamed.txt => new.txt |  0
//	file.bin              | Bin 0 -> 1024 bytes
//
// The trailing totals line has no pipe and is skipped.
func parseCompactSummaryLine(line string) (protocol.FileChange, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, "|") {
		return protocol.FileChange{}, false
	}

	filePart, changesPart, _ := strings.Cut(line, "|")
	filePart = strings.TrimSpace(filePart)
	changesPart = strings.TrimSpace(changesPart)

	change := protocol.FileChange{ChangeType: protocol.ChangeModified}

	switch {
	case strings.Contains(filePart, " => "):
		oldPath, newPath, _ := strings.Cut(filePart, " => ")
		change.OldPath = strings.TrimSpace(oldPath)
		change.Path = strings.TrimSpace(newPath)
		change.ChangeType = protocol.ChangeRenamed
	case strings.HasSuffix(filePart, " (new)"):
		change.Path = strings.TrimSpace(strings.TrimSuffix(filePart, " (new)"))
		change.ChangeType = protocol.ChangeAdded
	case strings.HasSuffix(filePart, " (gone)"):
		change.Path = strings.TrimSpace(strings.TrimSuffix(filePart, " (gone)"))
		change.ChangeType = protocol.ChangeDeleted
	default:
		change.Path = filePart
	}

	// Binary rows read "Bin 0 -> 1024 bytes"; compact-summary has no
	// +/- counts for them.
	if strings.HasPrefix(changesPart, "Bin") {
		change.IsBinary = true

		return change, true
	}

	fields := strings.Fields(changesPart)
	if len(fields) > 0 {
		total, convErr := strconv.Atoi(fields[0])
		if convErr == nil {
			additions := strings.Count(changesPart, "+")
			deletions := strings.Count(changesPart, "-")

			change.Additions = &additions
			change.Deletions = &deletions
			change.Changes = &total
		}
	}

	return change, true
}
