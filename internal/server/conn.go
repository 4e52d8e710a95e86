package server

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// connection is one websocket session. The session state is owned by
// the command loop goroutine; the read loop only decodes frames and
// the send loop only batches outbound events, so the state needs no
// lock.
type connection struct {
	server *Server
	ws     *websocket.Conn

	session protocol.Session

	rx chan protocol.Command
	tx chan protocol.Event
}

func newConnection(server *Server, ws *websocket.Conn) *connection {
	return &connection{
		server: server,
		ws:     ws,
		session: protocol.Session{
			OpenPaths: []string{},
			GitFlags:  protocol.DefaultGitFlags(),
		},
		rx: make(chan protocol.Command, txQueueSize),
		tx: make(chan protocol.Event, txQueueSize),
	}
}

// run drives the session until the peer disconnects or ctx ends.
func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()

		c.readLoop(ctx)
	}()

	go func() {
		defer wg.Done()

		c.sendLoop(ctx)
	}()

	// Initial data: the repository list is all a fresh client needs.
	c.push(protocol.ReposEvent{Repos: c.server.repos})

	c.commandLoop(ctx)

	_ = c.ws.Close()

	wg.Wait()
}

// push enqueues an event for batched delivery. A full queue drops the
// event; a client that slow is about to be disconnected anyway.
func (c *connection) push(event protocol.Event) {
	select {
	case c.tx <- event:
	default:
		c.server.logger.Warn("outbound queue full, dropping event", "type", event.EventType())
	}
}

// readLoop decodes client frames into commands.
func (c *connection) readLoop(ctx context.Context) {
	for {
		_, frame, readErr := c.ws.ReadMessage()
		if readErr != nil {
			return
		}

		c.server.metrics.FramesReceived.Inc()

		cmd, decodeErr := protocol.DecodeCommand(frame)
		if decodeErr != nil {
			c.server.logger.WarnContext(ctx, "discarding malformed command frame", "error", decodeErr)
			c.server.metrics.CommandsDropped.Inc()

			continue
		}

		select {
		case c.rx <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// sendLoop batches outbound events into JSON-array frames, flushing
// at maxBatchSize events or after maxBatchDelay.
func (c *connection) sendLoop(ctx context.Context) {
	ticker := time.NewTicker(maxBatchDelay)
	defer ticker.Stop()

	var buffer []protocol.Event

	flush := func() {
		if len(buffer) == 0 {
			return
		}

		frame, marshalErr := protocol.MarshalEventBatch(buffer)
		if marshalErr != nil {
			c.server.logger.WarnContext(ctx, "dropping unmarshalable batch", "error", marshalErr)
			buffer = buffer[:0]

			return
		}

		writeErr := c.ws.WriteMessage(websocket.TextMessage, frame)
		if writeErr != nil {
			c.server.logger.DebugContext(ctx, "websocket write failed", "error", writeErr)
		}

		c.server.metrics.FramesSent.Inc()
		buffer = buffer[:0]
	}

	for {
		select {
		case event := <-c.tx:
			buffer = append(buffer, event)

			if len(buffer) >= maxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()

			return
		}
	}
}

// commandLoop owns the session state and applies client commands one
// at a time.
func (c *connection) commandLoop(ctx context.Context) {
	for {
		select {
		case cmd := <-c.rx:
			c.handleCommand(ctx, cmd)
		case <-ctx.Done():
			return
		}
	}
}

// handleCommand mutates the session per the command and pushes the
// follow-up events. After any mutation the fresh session snapshot is
// rebroadcast; a commit-identity change additionally triggers a new
// summary and content for the open paths, so the client can invalidate
// and refill its overlay.
func (c *connection) handleCommand(ctx context.Context, cmd protocol.Command) {
	prev := c.session
	mutated := true

	switch cmd := cmd.(type) {
	case protocol.HeartbeatCommand:
		return
	case protocol.SetCommitACommand:
		c.session.CommitA = cmd.Commit
	case protocol.SetCommitBCommand:
		c.session.CommitB = cmd.Commit
	case protocol.ResetCommitACommand:
		c.session.CommitA = ""
	case protocol.ResetCommitBCommand:
		c.session.CommitB = ""
	case protocol.SwapCommitsCommand:
		c.session.CommitA, c.session.CommitB = c.session.CommitB, c.session.CommitA
	case protocol.ContextIncCommand:
		c.session.GitFlags.ContextLines++
	case protocol.ContextDecCommand:
		if c.session.GitFlags.ContextLines > 0 {
			c.session.GitFlags.ContextLines--
		} else {
			mutated = false
		}
	case protocol.ContextResetCommand:
		if c.session.GitFlags.ContextLines != protocol.DefaultContextLines {
			c.session.GitFlags.ContextLines = protocol.DefaultContextLines
		} else {
			mutated = false
		}
	case protocol.SetDiffAlgoCommand:
		if cmd.Algo.Valid() {
			c.session.GitFlags.DiffAlgo = cmd.Algo
		} else {
			c.server.logger.WarnContext(ctx, "ignoring unknown diff algorithm", "algo", string(cmd.Algo))

			mutated = false
		}
	case protocol.IgnoreAllSpaceCommand:
		c.session.GitFlags.IgnoreAllSpace = cmd.Value
	case protocol.MaxCountIncCommand:
		c.session.GitFlags.MaxCount++
		c.refreshCommits(ctx)
	case protocol.MaxCountDecCommand:
		if c.session.GitFlags.MaxCount > 1 {
			c.session.GitFlags.MaxCount--
			c.refreshCommits(ctx)
		} else {
			mutated = false
		}
	case protocol.GetDiffCommand:
		c.sendDiff(ctx, cmd.Paths)

		return
	case protocol.GitFetchCommand:
		c.handleGitFetch(ctx)

		return
	case protocol.RepoSelectCommand:
		mutated = c.handleRepoSelect(ctx, cmd.Repo)
	case protocol.BranchSelectCommand:
		mutated = c.handleBranchSelect(ctx, cmd.Branch)
	case protocol.OpenPathCommand:
		if !slices.Contains(c.session.OpenPaths, cmd.Path) {
			c.session.OpenPaths = append(slices.Clone(c.session.OpenPaths), cmd.Path)
		}
	case protocol.ClosePathCommand:
		if idx := slices.Index(c.session.OpenPaths, cmd.Path); idx >= 0 {
			c.session.OpenPaths = slices.Delete(slices.Clone(c.session.OpenPaths), idx, idx+1)
		} else {
			mutated = false
		}
	case protocol.SetOpenPathsCommand:
		c.session.OpenPaths = cmd.Paths
	default:
		c.server.logger.WarnContext(ctx, "unhandled client command", "type", cmd.CommandType())
		c.server.metrics.CommandsDropped.Inc()

		return
	}

	if !mutated {
		return
	}

	c.push(protocol.SessionStateEvent{State: c.session})

	if !prev.SameIdentity(c.session) || prev.Repo != c.session.Repo {
		c.sendDiffSummary(ctx)

		if len(c.session.OpenPaths) > 0 {
			c.sendDiff(ctx, c.session.OpenPaths)
		}

		return
	}

	// Same identity: only newly opened paths need content.
	newPaths := pathsAdded(prev.OpenPaths, c.session.OpenPaths)
	if len(newPaths) > 0 {
		c.sendDiff(ctx, newPaths)
	}
}

func (c *connection) handleRepoSelect(ctx context.Context, repo string) bool {
	if c.session.Repo == repo {
		return false
	}

	c.session.Repo = repo
	c.session.CommitA = ""
	c.session.CommitB = ""
	c.session.OpenPaths = []string{}

	branch, branchErr := c.server.git.CurrentBranch(ctx, repo)
	if branchErr != nil {
		c.server.logger.WarnContext(ctx, "current branch lookup failed", "repo", repo, "error", branchErr)
	} else {
		c.session.Branch = branch.Name
	}

	c.sendRepoData(ctx)

	return true
}

func (c *connection) handleBranchSelect(ctx context.Context, branch string) bool {
	if c.session.Branch == branch {
		return false
	}

	c.session.Branch = branch

	if c.session.Repo != "" {
		c.refreshCommits(ctx)
	}

	return true
}

func (c *connection) handleGitFetch(ctx context.Context) {
	if c.session.Repo == "" {
		return
	}

	fetchErr := c.server.git.Fetch(ctx, c.session.Repo)
	if fetchErr != nil {
		c.server.logger.WarnContext(ctx, "git fetch failed", "repo", c.session.Repo, "error", fetchErr)

		return
	}

	// Remotes may have moved; refresh everything ref-derived.
	c.sendRepoData(ctx)
}

// sendRepoData pushes branches, tags and the commit log of the
// selected repository.
func (c *connection) sendRepoData(ctx context.Context) {
	repo := c.session.Repo

	branches, branchesErr := c.server.git.Branches(ctx, repo)
	if branchesErr != nil {
		c.server.logger.WarnContext(ctx, "branch listing failed", "repo", repo, "error", branchesErr)
	} else {
		c.push(protocol.BranchesEvent{Branches: branches})
	}

	tags, tagsErr := c.server.git.Tags(ctx, repo)
	if tagsErr != nil {
		c.server.logger.WarnContext(ctx, "tag listing failed", "repo", repo, "error", tagsErr)
	} else {
		if len(tags) > tagListLimit {
			tags = tags[:tagListLimit]
		}

		c.push(protocol.TagsEvent{Tags: tags})
	}

	c.refreshCommits(ctx)
}

func (c *connection) refreshCommits(ctx context.Context) {
	if c.session.Repo == "" {
		return
	}

	commits, logErr := c.server.git.Log(ctx, c.session.Repo, c.session.Branch, c.session.GitFlags.MaxCount)
	if logErr != nil {
		c.server.logger.WarnContext(ctx, "git log failed", "repo", c.session.Repo, "error", logErr)

		return
	}

	c.push(protocol.CommitsEvent{Commits: commits})
}

// sendDiffSummary pushes a fresh compact summary when enough of the
// commit identity is pinned.
func (c *connection) sendDiffSummary(ctx context.Context) {
	if c.session.Repo == "" || c.session.CommitA == "" {
		return
	}

	summary, summaryErr := c.server.git.CompactSummary(ctx, c.session.Repo, c.session.CommitA, c.session.CommitB)
	if summaryErr != nil {
		c.server.logger.WarnContext(ctx, "diff summary failed", "repo", c.session.Repo, "error", summaryErr)

		return
	}

	c.push(protocol.DiffSummaryEvent{Summary: summary})
}

// sendDiff pushes patch content. A nil paths slice yields a full
// delivery; a non-nil slice yields a partial one limited to those
// paths.
func (c *connection) sendDiff(ctx context.Context, paths []string) {
	if c.session.Repo == "" || c.session.CommitA == "" {
		return
	}

	var (
		diff    protocol.Diff
		diffErr error
	)

	if c.session.CommitB != "" {
		diff, diffErr = c.server.git.Diff(ctx,
			c.session.Repo, c.session.CommitA, c.session.CommitB, c.session.GitFlags, paths)
	} else {
		diff, diffErr = c.server.git.ShowCommit(ctx,
			c.session.Repo, c.session.CommitA, c.session.GitFlags, paths)
	}

	if diffErr != nil {
		c.server.logger.WarnContext(ctx, "diff failed", "repo", c.session.Repo, "error", diffErr)

		return
	}

	c.push(protocol.DiffEvent{Diff: diff, Partial: paths != nil})
}

// pathsAdded returns the members of next missing from prev, in next's
// order.
func pathsAdded(prev, next []string) []string {
	var added []string

	for _, path := range next {
		if !slices.Contains(prev, path) {
			added = append(added, path)
		}
	}

	return added
}
