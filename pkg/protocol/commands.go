package protocol

import (
	"encoding/json"
	"fmt"
)

// Command type tags as they appear on the wire.
const (
	CommandTypeHeartbeat      = "heartbeat"
	CommandTypeRepoSelect     = "repo-select"
	CommandTypeBranchSelect   = "branch-select"
	CommandTypeGetDiff        = "get-diff"
	CommandTypeOpenPath       = "open-path"
	CommandTypeClosePath      = "close-path"
	CommandTypeSetOpenPaths   = "set-open-paths"
	CommandTypeSetCommitA     = "set-commit-a"
	CommandTypeSetCommitB     = "set-commit-b"
	CommandTypeResetCommitA   = "reset-commit-a"
	CommandTypeResetCommitB   = "reset-commit-b"
	CommandTypeSwapCommits    = "swap-commits"
	CommandTypeSetDiffAlgo    = "set-diff-algo"
	CommandTypeIgnoreAllSpace = "ignore-all-space"
	CommandTypeContextInc     = "context-inc"
	CommandTypeContextDec     = "context-dec"
	CommandTypeContextReset   = "context-reset"
	CommandTypeMaxCountInc    = "max-count-inc"
	CommandTypeMaxCountDec    = "max-count-dec"
	CommandTypeGitFetch       = "git-fetch"
)

// Command is a client-issued intent. Commands are fire-and-forget: the
// server never acknowledges them directly, it pushes fresh state
// instead.
type Command interface {
	CommandType() string
}

// HeartbeatCommand is the periodic liveness ping. Timestamp is Unix
// milliseconds at send time; no response is expected.
type HeartbeatCommand struct {
	Timestamp int64 `json:"timestamp"`
}

// CommandType implements Command.
func (HeartbeatCommand) CommandType() string { return CommandTypeHeartbeat }

// RepoSelectCommand switches the session to another repository.
type RepoSelectCommand struct {
	Repo string `json:"repo"`
}

// CommandType implements Command.
func (RepoSelectCommand) CommandType() string { return CommandTypeRepoSelect }

// BranchSelectCommand switches the session to another branch.
type BranchSelectCommand struct {
	Branch string `json:"branch"`
}

// CommandType implements Command.
func (BranchSelectCommand) CommandType() string { return CommandTypeBranchSelect }

// GetDiffCommand requests patch content. A nil Paths slice asks for
// the full diff; a non-nil slice asks for a partial delivery limited
// to those paths.
type GetDiffCommand struct {
	Paths []string `json:"paths"`
}

// CommandType implements Command.
func (GetDiffCommand) CommandType() string { return CommandTypeGetDiff }

// OpenPathCommand appends a path to the session's open set.
type OpenPathCommand struct {
	Path string `json:"path"`
}

// CommandType implements Command.
func (OpenPathCommand) CommandType() string { return CommandTypeOpenPath }

// ClosePathCommand removes a path from the session's open set.
type ClosePathCommand struct {
	Path string `json:"path"`
}

// CommandType implements Command.
func (ClosePathCommand) CommandType() string { return CommandTypeClosePath }

// SetOpenPathsCommand replaces the session's open set wholesale.
type SetOpenPathsCommand struct {
	Paths []string `json:"paths"`
}

// CommandType implements Command.
func (SetOpenPathsCommand) CommandType() string { return CommandTypeSetOpenPaths }

// SetCommitACommand pins the first commit reference.
type SetCommitACommand struct {
	Commit string `json:"commit"`
}

// CommandType implements Command.
func (SetCommitACommand) CommandType() string { return CommandTypeSetCommitA }

// SetCommitBCommand pins the second commit reference.
type SetCommitBCommand struct {
	Commit string `json:"commit"`
}

// CommandType implements Command.
func (SetCommitBCommand) CommandType() string { return CommandTypeSetCommitB }

// ResetCommitACommand clears the first commit reference.
type ResetCommitACommand struct{}

// CommandType implements Command.
func (ResetCommitACommand) CommandType() string { return CommandTypeResetCommitA }

// ResetCommitBCommand clears the second commit reference.
type ResetCommitBCommand struct{}

// CommandType implements Command.
func (ResetCommitBCommand) CommandType() string { return CommandTypeResetCommitB }

// SwapCommitsCommand exchanges the two commit references.
type SwapCommitsCommand struct{}

// CommandType implements Command.
func (SwapCommitsCommand) CommandType() string { return CommandTypeSwapCommits }

// SetDiffAlgoCommand selects the diff algorithm.
type SetDiffAlgoCommand struct {
	Algo DiffAlgorithm `json:"algo"`
}

// CommandType implements Command.
func (SetDiffAlgoCommand) CommandType() string { return CommandTypeSetDiffAlgo }

// IgnoreAllSpaceCommand toggles whitespace-insensitive diffing.
type IgnoreAllSpaceCommand struct {
	Value bool `json:"value"`
}

// CommandType implements Command.
func (IgnoreAllSpaceCommand) CommandType() string { return CommandTypeIgnoreAllSpace }

// ContextIncCommand grows the unified-diff context by one line.
type ContextIncCommand struct{}

// CommandType implements Command.
func (ContextIncCommand) CommandType() string { return CommandTypeContextInc }

// ContextDecCommand shrinks the unified-diff context by one line,
// with a floor of zero.
type ContextDecCommand struct{}

// CommandType implements Command.
func (ContextDecCommand) CommandType() string { return CommandTypeContextDec }

// ContextResetCommand restores the default context line count.
type ContextResetCommand struct{}

// CommandType implements Command.
func (ContextResetCommand) CommandType() string { return CommandTypeContextReset }

// MaxCountIncCommand grows the commit log page size.
type MaxCountIncCommand struct{}

// CommandType implements Command.
func (MaxCountIncCommand) CommandType() string { return CommandTypeMaxCountInc }

// MaxCountDecCommand shrinks the commit log page size, with a floor
// of one.
type MaxCountDecCommand struct{}

// CommandType implements Command.
func (MaxCountDecCommand) CommandType() string { return CommandTypeMaxCountDec }

// GitFetchCommand asks the server to fetch from all remotes of the
// selected repository.
type GitFetchCommand struct{}

// CommandType implements Command.
func (GitFetchCommand) CommandType() string { return CommandTypeGitFetch }

// UnknownCommand preserves a client frame whose type tag the server
// does not recognize.
type UnknownCommand struct {
	Tag string
	Raw json.RawMessage
}

// CommandType implements Command.
func (c UnknownCommand) CommandType() string { return c.Tag }

// MarshalCommand serializes a command into a single wire object with
// the type tag spliced in first.
func MarshalCommand(cmd Command) ([]byte, error) {
	return marshalTagged(cmd.CommandType(), cmd)
}

// DecodeCommand decodes a single JSON object into its command
// variant. Unknown type tags decode to UnknownCommand; malformed JSON
// is the only error condition.
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope

	unmarshalErr := json.Unmarshal(raw, &env)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("decode command envelope: %w", unmarshalErr)
	}

	switch env.Type {
	case CommandTypeHeartbeat:
		var cmd HeartbeatCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeRepoSelect:
		var cmd RepoSelectCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeBranchSelect:
		var cmd BranchSelectCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeGetDiff:
		var cmd GetDiffCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeOpenPath:
		var cmd OpenPathCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeClosePath:
		var cmd ClosePathCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeSetOpenPaths:
		var cmd SetOpenPathsCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeSetCommitA:
		var cmd SetCommitACommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeSetCommitB:
		var cmd SetCommitBCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeResetCommitA:
		return ResetCommitACommand{}, nil
	case CommandTypeResetCommitB:
		return ResetCommitBCommand{}, nil
	case CommandTypeSwapCommits:
		return SwapCommitsCommand{}, nil
	case CommandTypeSetDiffAlgo:
		var cmd SetDiffAlgoCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeIgnoreAllSpace:
		var cmd IgnoreAllSpaceCommand

		return unmarshalCommand(raw, env.Type, &cmd)
	case CommandTypeContextInc:
		return ContextIncCommand{}, nil
	case CommandTypeContextDec:
		return ContextDecCommand{}, nil
	case CommandTypeContextReset:
		return ContextResetCommand{}, nil
	case CommandTypeMaxCountInc:
		return MaxCountIncCommand{}, nil
	case CommandTypeMaxCountDec:
		return MaxCountDecCommand{}, nil
	case CommandTypeGitFetch:
		return GitFetchCommand{}, nil
	default:
		return UnknownCommand{Tag: env.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func unmarshalCommand[T Command](raw []byte, tag string, target *T) (Command, error) {
	unmarshalErr := json.Unmarshal(raw, target)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("decode %s command: %w", tag, unmarshalErr)
	}

	return *target, nil
}
