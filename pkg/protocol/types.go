// Package protocol defines the typed wire vocabulary exchanged between
// the diffodil server and its browser-session clients. Frames are
// line-delimited JSON objects (or arrays of objects for batched
// delivery) discriminated by a "type" field.
package protocol

import "time"

// DiffAlgorithm selects the diff algorithm passed to git.
type DiffAlgorithm string

// Supported diff algorithms, matching git's --diff-algorithm values.
const (
	DiffAlgorithmMyers     DiffAlgorithm = "myers"
	DiffAlgorithmMinimal   DiffAlgorithm = "minimal"
	DiffAlgorithmPatience  DiffAlgorithm = "patience"
	DiffAlgorithmHistogram DiffAlgorithm = "histogram"
)

// Valid reports whether the algorithm is one of the supported values.
func (a DiffAlgorithm) Valid() bool {
	switch a {
	case DiffAlgorithmMyers, DiffAlgorithmMinimal, DiffAlgorithmPatience, DiffAlgorithmHistogram:
		return true
	default:
		return false
	}
}

// ChangeType classifies how a file changed between two commits.
type ChangeType string

// File change classifications as reported by git.
const (
	ChangeAdded    ChangeType = "added"
	ChangeDeleted  ChangeType = "deleted"
	ChangeModified ChangeType = "modified"
	ChangeRenamed  ChangeType = "renamed"
	ChangeCopied   ChangeType = "copied"
)

// Default git flag values applied to a fresh session.
const (
	DefaultMaxCount     = 25
	DefaultContextLines = 3
)

// GitFlags holds the tunable options forwarded to git diff invocations.
type GitFlags struct {
	MaxCount       int           `json:"max_count"`
	ContextLines   int           `json:"context_lines"`
	DiffAlgo       DiffAlgorithm `json:"diff_algo"`
	IgnoreAllSpace bool          `json:"ignore_all_space"`
}

// DefaultGitFlags returns the flag values of a fresh session.
func DefaultGitFlags() GitFlags {
	return GitFlags{
		MaxCount:       DefaultMaxCount,
		ContextLines:   DefaultContextLines,
		DiffAlgo:       DiffAlgorithmMyers,
		IgnoreAllSpace: false,
	}
}

// Session is the server-owned per-connection state mirrored by the
// client. Empty strings stand for unset references. OpenPaths is an
// insertion-ordered render hint and carries no diff semantics.
type Session struct {
	Repo      string   `json:"repo"`
	Branch    string   `json:"branch"`
	CommitA   string   `json:"commit_a"`
	CommitB   string   `json:"commit_b"`
	OpenPaths []string `json:"open_paths"`
	GitFlags  GitFlags `json:"git_flags"`
}

// Identity returns the (branch, commit A, commit B) triple that
// determines which assembled diff content is still valid.
func (s Session) Identity() (branch, commitA, commitB string) {
	return s.Branch, s.CommitA, s.CommitB
}

// SameIdentity reports whether both sessions refer to the same commit
// identity. Flag-only or open-path changes keep the identity intact.
func (s Session) SameIdentity(other Session) bool {
	return s.Branch == other.Branch && s.CommitA == other.CommitA && s.CommitB == other.CommitB
}

// Branch describes one entry of `git branch --list --all`.
type Branch struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
	IsRemote  bool   `json:"is_remote"`
	Remote    string `json:"remote,omitempty"`
	// PointsTo is set for symbolic refs like "origin/HEAD -> origin/main".
	PointsTo string `json:"points_to,omitempty"`
}

// Tag describes one entry of `git tag --list`.
type Tag struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// Commit is a single `git log` record.
type Commit struct {
	ShortHash string    `json:"short_hash"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Date      time.Time `json:"date"`
}

// DiffHunk is one @@-delimited block of a unified diff. Content holds
// the raw lines, each prefixed '+', '-' or ' '. Invariant: the number
// of '-'/context lines equals OldCount and the number of '+'/context
// lines equals NewCount.
type DiffHunk struct {
	Header       string   `json:"header"`
	OldStart     int      `json:"old_start"`
	OldCount     int      `json:"old_count"`
	NewStart     int      `json:"new_start"`
	NewCount     int      `json:"new_count"`
	Content      []string `json:"content"`
	AddedLines   int      `json:"added_lines"`
	RemovedLines int      `json:"removed_lines"`
}

// DiffFile is the parsed patch content of a single file.
type DiffFile struct {
	FilePath   string     `json:"file_path"`
	ChangeType ChangeType `json:"change_type"`
	Hunks      []DiffHunk `json:"hunks"`
}

// Diff is a full or partial patch between two commits.
type Diff struct {
	FromCommit string     `json:"from_commit"`
	ToCommit   string     `json:"to_commit"`
	Files      []DiffFile `json:"files"`
}

// FileChange is one row of `git diff --compact-summary`. The counter
// fields are nil for binary files, where git reports byte sizes
// instead of line counts.
type FileChange struct {
	Path       string     `json:"path"`
	ChangeType ChangeType `json:"change_type"`
	// OldPath is set for renames and copies.
	OldPath   string `json:"old_path,omitempty"`
	IsBinary  bool   `json:"is_binary"`
	Additions *int   `json:"additions"`
	Deletions *int   `json:"deletions"`
	Changes   *int   `json:"changes"`
}

// DiffSummary is the authoritative file list of a commit pair. File
// content is delivered separately and may lag behind the summary.
type DiffSummary struct {
	CommitA           string       `json:"commit_a"`
	CommitB           string       `json:"commit_b"`
	Files             []FileChange `json:"files"`
	TotalFilesChanged int          `json:"total_files_changed"`
	TotalAdditions    int          `json:"total_additions"`
	TotalDeletions    int          `json:"total_deletions"`
}
