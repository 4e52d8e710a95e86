// Package session holds the client-side mirror of a diffodil session
// and the single state-transition function that applies server-pushed
// events to it. All state changes originate from inbound events; the
// presentation layer only ever reads snapshots and issues commands.
package session

import (
	"context"
	"log/slog"

	"github.com/Sumatoshi-tech/diffodil/pkg/diffview"
	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// State is one immutable snapshot of everything the client knows.
// Collections are replaced wholesale by their events and must not be
// mutated by consumers; the zero value is the initial state (all
// collections empty, session/summary/overlay absent).
type State struct {
	Session  *protocol.Session
	Repos    []string
	Branches []protocol.Branch
	Tags     []protocol.Tag
	Commits  []protocol.Commit
	Summary  *protocol.DiffSummary
	Overlay  *diffview.Overlay
}

// Reducer applies inbound events one at a time, each application
// running to completion before the next, so no locking is needed as
// long as Apply is called from a single goroutine (the transport's
// read loop, in practice).
type Reducer struct {
	logger *slog.Logger
	state  State
}

// NewReducer creates a reducer in the initial state. A nil logger
// falls back to slog.Default.
func NewReducer(logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reducer{logger: logger}
}

// State returns the current snapshot.
func (r *Reducer) State() State {
	return r.state
}

// Apply advances the reducer by one event and returns the resulting
// snapshot. It is pure with respect to the transport: no event is
// ever sent back, and no event type is a fatal error.
func (r *Reducer) Apply(ctx context.Context, event protocol.Event) State {
	r.state = Reduce(ctx, r.logger, r.state, event)

	return r.state
}

// Reduce is the transition function itself, exposed for plain
// event-in/state-out testing. Unknown events return state unchanged.
func Reduce(ctx context.Context, logger *slog.Logger, state State, event protocol.Event) State {
	switch ev := event.(type) {
	case protocol.ReposEvent:
		state.Repos = ev.Repos
	case protocol.BranchesEvent:
		state.Branches = ev.Branches
	case protocol.TagsEvent:
		state.Tags = ev.Tags
	case protocol.CommitsEvent:
		state.Commits = ev.Commits
	case protocol.SessionStateEvent:
		state = applySessionState(state, ev.State)
	case protocol.DiffEvent:
		state.Overlay = state.Overlay.Apply(ev.Diff, ev.Partial)
	case protocol.DiffSummaryEvent:
		summary := ev.Summary
		state.Summary = &summary
	case protocol.PingEvent, protocol.PongEvent:
		// Liveness traffic carries no state.
	default:
		logger.WarnContext(ctx, "ignoring unknown event", "type", event.EventType())
	}

	return state
}

// applySessionState replaces the session mirror and, when the commit
// identity changed, drops the assembled overlay: diff content keyed to
// the previous identity is no longer valid. Flag-only changes (context
// lines, algorithm, whitespace handling) keep the overlay.
func applySessionState(state State, incoming protocol.Session) State {
	identityChanged := state.Session == nil || !state.Session.SameIdentity(incoming)

	state.Session = &incoming

	if identityChanged {
		state.Overlay = nil
	}

	return state
}
