package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

func TestMarshalCommandSplicesTag(t *testing.T) {
	frame, err := protocol.MarshalCommand(protocol.SetCommitACommand{Commit: "abc1234"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"set-commit-a","commit":"abc1234"}`, string(frame))
}

func TestMarshalCommandPayloadFree(t *testing.T) {
	frame, err := protocol.MarshalCommand(protocol.SwapCommitsCommand{})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"swap-commits"}`, string(frame))
}

func TestMarshalCommandNilPaths(t *testing.T) {
	// A nil Paths slice means "full diff" and must survive as null,
	// not an empty array.
	frame, err := protocol.MarshalCommand(protocol.GetDiffCommand{})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"get-diff","paths":null}`, string(frame))
}

func TestDecodeCommandRoundTrip(t *testing.T) {
	commands := []protocol.Command{
		protocol.HeartbeatCommand{Timestamp: 1712345678901},
		protocol.RepoSelectCommand{Repo: "/tmp/a"},
		protocol.BranchSelectCommand{Branch: "main"},
		protocol.GetDiffCommand{Paths: []string{"a.txt", "b.txt"}},
		protocol.OpenPathCommand{Path: "a.txt"},
		protocol.ClosePathCommand{Path: "a.txt"},
		protocol.SetOpenPathsCommand{Paths: []string{"a.txt"}},
		protocol.SetCommitACommand{Commit: "abc"},
		protocol.SetCommitBCommand{Commit: "def"},
		protocol.ResetCommitACommand{},
		protocol.ResetCommitBCommand{},
		protocol.SwapCommitsCommand{},
		protocol.SetDiffAlgoCommand{Algo: protocol.DiffAlgorithmPatience},
		protocol.IgnoreAllSpaceCommand{Value: true},
		protocol.ContextIncCommand{},
		protocol.ContextDecCommand{},
		protocol.ContextResetCommand{},
		protocol.MaxCountIncCommand{},
		protocol.MaxCountDecCommand{},
		protocol.GitFetchCommand{},
	}

	for _, cmd := range commands {
		frame, marshalErr := protocol.MarshalCommand(cmd)
		require.NoError(t, marshalErr, cmd.CommandType())

		decoded, decodeErr := protocol.DecodeCommand(frame)
		require.NoError(t, decodeErr, cmd.CommandType())
		require.Equal(t, cmd, decoded, cmd.CommandType())
	}
}

func TestDecodeCommandUnknown(t *testing.T) {
	cmd, err := protocol.DecodeCommand([]byte(`{"type":"self-destruct"}`))
	require.NoError(t, err)

	unknown, ok := cmd.(protocol.UnknownCommand)
	require.True(t, ok)
	require.Equal(t, "self-destruct", unknown.Tag)
}

func TestDiffAlgorithmValid(t *testing.T) {
	require.True(t, protocol.DiffAlgorithmMyers.Valid())
	require.True(t, protocol.DiffAlgorithmMinimal.Valid())
	require.True(t, protocol.DiffAlgorithmPatience.Valid())
	require.True(t, protocol.DiffAlgorithmHistogram.Valid())
	require.False(t, protocol.DiffAlgorithm("bogus").Valid())
}

func TestSessionSameIdentity(t *testing.T) {
	base := protocol.Session{Branch: "main", CommitA: "a", CommitB: "b"}

	flagsOnly := base
	flagsOnly.GitFlags.ContextLines = 10
	require.True(t, base.SameIdentity(flagsOnly))

	moved := base
	moved.CommitB = "c"
	require.False(t, base.SameIdentity(moved))
}
