package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/diffodil/internal/server"
	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

const testTimeout = 3 * time.Second

func newTestSession(t *testing.T, repos []string) *websocket.Conn {
	t.Helper()

	srv := server.New(server.Config{
		Repos:  repos,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, dialErr := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, dialErr)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// nextEvents reads one frame and decodes its batch.
func nextEvents(t *testing.T, conn *websocket.Conn) []protocol.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))

	_, frame, readErr := conn.ReadMessage()
	require.NoError(t, readErr)

	events, decodeErr := protocol.DecodeFrame(frame)
	require.NoError(t, decodeErr)

	return events
}

// waitFor keeps reading frames until an event satisfies match.
func waitFor(t *testing.T, conn *websocket.Conn, match func(protocol.Event) bool) protocol.Event {
	t.Helper()

	deadline := time.Now().Add(testTimeout)

	for time.Now().Before(deadline) {
		for _, event := range nextEvents(t, conn) {
			if match(event) {
				return event
			}
		}
	}

	t.Fatal("expected event never arrived")

	return nil
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd protocol.Command) {
	t.Helper()

	frame, marshalErr := protocol.MarshalCommand(cmd)
	require.NoError(t, marshalErr)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func waitForSessionState(t *testing.T, conn *websocket.Conn) protocol.Session {
	t.Helper()

	event := waitFor(t, conn, func(event protocol.Event) bool {
		_, ok := event.(protocol.SessionStateEvent)

		return ok
	})

	return event.(protocol.SessionStateEvent).State
}

func TestSessionSendsReposOnConnect(t *testing.T) {
	conn := newTestSession(t, []string{"/tmp/a", "/tmp/b"})

	event := waitFor(t, conn, func(event protocol.Event) bool {
		_, ok := event.(protocol.ReposEvent)

		return ok
	})

	require.Equal(t, []string{"/tmp/a", "/tmp/b"}, event.(protocol.ReposEvent).Repos)
}

func TestSessionCommitSelection(t *testing.T) {
	conn := newTestSession(t, nil)

	sendCommand(t, conn, protocol.SetCommitACommand{Commit: "abc"})
	state := waitForSessionState(t, conn)
	require.Equal(t, "abc", state.CommitA)

	sendCommand(t, conn, protocol.SetCommitBCommand{Commit: "def"})
	state = waitForSessionState(t, conn)
	require.Equal(t, "def", state.CommitB)

	sendCommand(t, conn, protocol.SwapCommitsCommand{})
	state = waitForSessionState(t, conn)
	require.Equal(t, "def", state.CommitA)
	require.Equal(t, "abc", state.CommitB)

	sendCommand(t, conn, protocol.ResetCommitACommand{})
	state = waitForSessionState(t, conn)
	require.Empty(t, state.CommitA)
}

func TestSessionContextFlags(t *testing.T) {
	conn := newTestSession(t, nil)

	sendCommand(t, conn, protocol.ContextIncCommand{})
	state := waitForSessionState(t, conn)
	require.Equal(t, protocol.DefaultContextLines+1, state.GitFlags.ContextLines)

	sendCommand(t, conn, protocol.ContextResetCommand{})
	state = waitForSessionState(t, conn)
	require.Equal(t, protocol.DefaultContextLines, state.GitFlags.ContextLines)

	sendCommand(t, conn, protocol.IgnoreAllSpaceCommand{Value: true})
	state = waitForSessionState(t, conn)
	require.True(t, state.GitFlags.IgnoreAllSpace)

	sendCommand(t, conn, protocol.SetDiffAlgoCommand{Algo: protocol.DiffAlgorithmHistogram})
	state = waitForSessionState(t, conn)
	require.Equal(t, protocol.DiffAlgorithmHistogram, state.GitFlags.DiffAlgo)
}

func TestSessionRejectsUnknownDiffAlgo(t *testing.T) {
	conn := newTestSession(t, nil)

	sendCommand(t, conn, protocol.SetDiffAlgoCommand{Algo: "bogus"})

	// The invalid algorithm is ignored; the next valid command shows
	// the algorithm untouched.
	sendCommand(t, conn, protocol.ContextIncCommand{})
	state := waitForSessionState(t, conn)
	require.Equal(t, protocol.DiffAlgorithmMyers, state.GitFlags.DiffAlgo)
}

func TestSessionOpenPaths(t *testing.T) {
	conn := newTestSession(t, nil)

	sendCommand(t, conn, protocol.OpenPathCommand{Path: "a.txt"})
	state := waitForSessionState(t, conn)
	require.Equal(t, []string{"a.txt"}, state.OpenPaths)

	sendCommand(t, conn, protocol.OpenPathCommand{Path: "b.txt"})
	state = waitForSessionState(t, conn)
	require.Equal(t, []string{"a.txt", "b.txt"}, state.OpenPaths)

	sendCommand(t, conn, protocol.ClosePathCommand{Path: "a.txt"})
	state = waitForSessionState(t, conn)
	require.Equal(t, []string{"b.txt"}, state.OpenPaths)

	sendCommand(t, conn, protocol.SetOpenPathsCommand{Paths: []string{"c.txt"}})
	state = waitForSessionState(t, conn)
	require.Equal(t, []string{"c.txt"}, state.OpenPaths)
}

func TestSessionMaxCountFloor(t *testing.T) {
	conn := newTestSession(t, nil)

	sendCommand(t, conn, protocol.MaxCountIncCommand{})
	state := waitForSessionState(t, conn)
	require.Equal(t, protocol.DefaultMaxCount+1, state.GitFlags.MaxCount)

	// Decrements never drop the page size below one; the floor is
	// observable through the following increment.
	for i := 0; i < protocol.DefaultMaxCount+5; i++ {
		sendCommand(t, conn, protocol.MaxCountDecCommand{})
	}

	sendCommand(t, conn, protocol.MaxCountIncCommand{})

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		state = waitForSessionState(t, conn)
		if state.GitFlags.MaxCount == 2 {
			return
		}
	}

	t.Fatalf("max count never settled at 2, last seen %d", state.GitFlags.MaxCount)
}

func TestSessionIgnoresUnknownCommand(t *testing.T) {
	conn := newTestSession(t, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"self-destruct"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`)))

	// The session survives both and still answers real commands.
	sendCommand(t, conn, protocol.ContextIncCommand{})
	state := waitForSessionState(t, conn)
	require.Equal(t, protocol.DefaultContextLines+1, state.GitFlags.ContextLines)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := server.New(server.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, getErr := http.Get(ts.URL + "/metrics")
	require.NoError(t, getErr)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	require.Contains(t, string(body), "diffodil_ws_connections_total")
}
