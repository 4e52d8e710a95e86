package session_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
	"github.com/Sumatoshi-tech/diffodil/pkg/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sessionEvent(branch, commitA, commitB string, contextLines int) protocol.SessionStateEvent {
	flags := protocol.DefaultGitFlags()
	flags.ContextLines = contextLines

	return protocol.SessionStateEvent{State: protocol.Session{
		Repo:     "/tmp/repo",
		Branch:   branch,
		CommitA:  commitA,
		CommitB:  commitB,
		GitFlags: flags,
	}}
}

func partialDiff(path string) protocol.DiffEvent {
	return protocol.DiffEvent{
		Diff: protocol.Diff{
			FromCommit: "a",
			ToCommit:   "b",
			Files: []protocol.DiffFile{{
				FilePath:   path,
				ChangeType: protocol.ChangeModified,
			}},
		},
		Partial: true,
	}
}

func TestReducerCollectionsReplacedWholesale(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	state := reducer.Apply(ctx, protocol.ReposEvent{Repos: []string{"/tmp/a", "/tmp/b"}})
	require.Equal(t, []string{"/tmp/a", "/tmp/b"}, state.Repos)

	state = reducer.Apply(ctx, protocol.ReposEvent{Repos: []string{"/tmp/c"}})
	require.Equal(t, []string{"/tmp/c"}, state.Repos)

	state = reducer.Apply(ctx, protocol.BranchesEvent{Branches: []protocol.Branch{{Name: "main", IsCurrent: true}}})
	require.Len(t, state.Branches, 1)

	state = reducer.Apply(ctx, protocol.TagsEvent{Tags: []protocol.Tag{{Name: "v1"}}})
	require.Len(t, state.Tags, 1)

	state = reducer.Apply(ctx, protocol.CommitsEvent{Commits: []protocol.Commit{{ShortHash: "abc"}}})
	require.Len(t, state.Commits, 1)
}

func TestReducerSessionIdentityChangeClearsOverlay(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, sessionEvent("main", "a", "b", 3))

	state := reducer.Apply(ctx, partialDiff("x.go"))
	require.NotNil(t, state.Overlay)
	require.Equal(t, 1, state.Overlay.Len())

	state = reducer.Apply(ctx, sessionEvent("main", "a", "c", 3))
	require.Nil(t, state.Overlay)
	require.Equal(t, "c", state.Session.CommitB)
}

func TestReducerFlagOnlyChangeKeepsOverlay(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, sessionEvent("main", "a", "b", 3))
	reducer.Apply(ctx, partialDiff("x.go"))

	before := reducer.State().Overlay
	require.NotNil(t, before)

	state := reducer.Apply(ctx, sessionEvent("main", "a", "b", 10))
	require.Same(t, before, state.Overlay)
	require.Equal(t, 10, state.Session.GitFlags.ContextLines)
}

func TestReducerFirstSessionClearsOverlay(t *testing.T) {
	// Session absent -> present counts as an identity change.
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, partialDiff("x.go"))
	require.NotNil(t, reducer.State().Overlay)

	state := reducer.Apply(ctx, sessionEvent("main", "a", "b", 3))
	require.Nil(t, state.Overlay)
}

func TestReducerUnknownEventLeavesStateUnchanged(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, protocol.ReposEvent{Repos: []string{"/tmp/a"}})
	reducer.Apply(ctx, sessionEvent("main", "a", "b", 3))
	reducer.Apply(ctx, partialDiff("x.go"))

	before := reducer.State()
	after := reducer.Apply(ctx, protocol.UnknownEvent{Tag: "telemetry"})

	require.Equal(t, before, after)
}

func TestReducerSummaryThenPartialDiff(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, protocol.DiffSummaryEvent{Summary: protocol.DiffSummary{
		CommitA:           "a",
		CommitB:           "b",
		Files:             []protocol.FileChange{{Path: "a.txt", ChangeType: protocol.ChangeModified}},
		TotalFilesChanged: 1,
	}})

	delivered := protocol.DiffFile{FilePath: "a.txt", ChangeType: protocol.ChangeModified}

	state := reducer.Apply(ctx, protocol.DiffEvent{
		Diff:    protocol.Diff{FromCommit: "a", ToCommit: "b", Files: []protocol.DiffFile{delivered}},
		Partial: true,
	})

	require.Len(t, state.Summary.Files, 1)
	require.Equal(t, "a.txt", state.Summary.Files[0].Path)

	file, ok := state.Overlay.File("a.txt")
	require.True(t, ok)
	require.Equal(t, delivered, file)
}

func TestReducerFullDiffReplacesOverlay(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, partialDiff("x.go"))
	reducer.Apply(ctx, partialDiff("y.go"))
	require.Equal(t, 2, reducer.State().Overlay.Len())

	state := reducer.Apply(ctx, protocol.DiffEvent{
		Diff: protocol.Diff{
			FromCommit: "a",
			ToCommit:   "b",
			Files:      []protocol.DiffFile{{FilePath: "z.go", ChangeType: protocol.ChangeAdded}},
		},
	})

	require.Equal(t, 1, state.Overlay.Len())

	_, hasOld := state.Overlay.File("x.go")
	require.False(t, hasOld)
}

func TestReducerLivenessEventsAreNoOps(t *testing.T) {
	reducer := session.NewReducer(testLogger())
	ctx := context.Background()

	reducer.Apply(ctx, protocol.ReposEvent{Repos: []string{"/tmp/a"}})

	before := reducer.State()
	require.Equal(t, before, reducer.Apply(ctx, protocol.PingEvent{}))
	require.Equal(t, before, reducer.Apply(ctx, protocol.PongEvent{}))
}

func TestReduceIsPureOnInputState(t *testing.T) {
	initial := session.State{}

	next := session.Reduce(context.Background(), testLogger(), initial, protocol.ReposEvent{Repos: []string{"/tmp/a"}})
	require.NotNil(t, next.Repos)
	require.Nil(t, initial.Repos)
}
