package diffview

import "github.com/Sumatoshi-tech/diffodil/pkg/protocol"

// Overlay is the client-held, path-keyed cache of fully delivered
// per-file diff content for one commit pair. Partial deliveries
// accumulate into it; a full delivery replaces it. Overlays are
// treated as immutable snapshots: Apply returns a fresh overlay and
// never mutates its receiver, so reducer states can share them safely.
type Overlay struct {
	FromCommit string
	ToCommit   string
	Files      map[string]protocol.DiffFile
}

// newOverlay builds an overlay from a diff delivery.
func newOverlay(diff protocol.Diff) *Overlay {
	files := make(map[string]protocol.DiffFile, len(diff.Files))

	for _, file := range diff.Files {
		files[file.FilePath] = file
	}

	return &Overlay{
		FromCommit: diff.FromCommit,
		ToCommit:   diff.ToCommit,
		Files:      files,
	}
}

// Apply merges one diff delivery into the overlay and returns the
// resulting snapshot. A non-partial delivery replaces the overlay
// wholesale, tagged with the delivery's commit pair. A partial
// delivery upserts per path, last write wins, leaving absent paths
// untouched; the commit-pair tag of an existing overlay is never
// changed by a partial delivery. The receiver may be nil (no overlay
// assembled yet).
func (o *Overlay) Apply(diff protocol.Diff, partial bool) *Overlay {
	if !partial || o == nil {
		return newOverlay(diff)
	}

	files := make(map[string]protocol.DiffFile, len(o.Files)+len(diff.Files))

	for path, file := range o.Files {
		files[path] = file
	}

	for _, file := range diff.Files {
		files[file.FilePath] = file
	}

	return &Overlay{
		FromCommit: o.FromCommit,
		ToCommit:   o.ToCommit,
		Files:      files,
	}
}

// File returns the delivered content for path, if any.
func (o *Overlay) File(path string) (protocol.DiffFile, bool) {
	if o == nil {
		return protocol.DiffFile{}, false
	}

	file, ok := o.Files[path]

	return file, ok
}

// Len returns the number of delivered files.
func (o *Overlay) Len() int {
	if o == nil {
		return 0
	}

	return len(o.Files)
}
