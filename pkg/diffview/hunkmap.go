// Package diffview reconstructs a line-addressable view of streamed
// unified-diff content: per-line old/new numbering of hunks and a
// path-keyed overlay accumulating partial per-file deliveries.
package diffview

import (
	"strings"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// LineKind classifies a hunk content line for display.
type LineKind int

// Hunk line classifications.
const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
)

// LineAddress is one hunk content line with its reconstructed old and
// new line numbers. OldLine is 0 for additions and NewLine is 0 for
// removals (line numbers are 1-based, so 0 means absent).
type LineAddress struct {
	Kind    LineKind
	Text    string
	OldLine int
	NewLine int
}

// MapHunkLines assigns old/new line numbers to every content line of
// the hunk. Two counters start at OldStart and NewStart; a '-' line
// consumes an old number, a '+' line consumes a new number, anything
// else is context and consumes both. The pass is O(len(content)) and
// order-dependent; callers rerun it whenever the hunk is displayed.
func MapHunkLines(hunk protocol.DiffHunk) []LineAddress {
	oldLine := hunk.OldStart
	newLine := hunk.NewStart

	addresses := make([]LineAddress, 0, len(hunk.Content))

	for _, line := range hunk.Content {
		switch {
		case strings.HasPrefix(line, "-"):
			addresses = append(addresses, LineAddress{
				Kind:    LineRemoved,
				Text:    line,
				OldLine: oldLine,
			})
			oldLine++
		case strings.HasPrefix(line, "+"):
			addresses = append(addresses, LineAddress{
				Kind:    LineAdded,
				Text:    line,
				NewLine: newLine,
			})
			newLine++
		default:
			// Everything else is context, including empty lines that
			// lost their leading space somewhere in transit.
			addresses = append(addresses, LineAddress{
				Kind:    LineContext,
				Text:    line,
				OldLine: oldLine,
				NewLine: newLine,
			})
			oldLine++
			newLine++
		}
	}

	return addresses
}
