// Package client owns the duplex channel between a diffodil consumer
// and the server: dialing, fixed-delay reconnects, heartbeats, inbound
// frame decode and fire-and-forget command sends. Each Transport is an
// explicitly owned connection object with an open/close lifecycle, so
// independent instances never interfere.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sumatoshi-tech/diffodil/pkg/protocol"
)

// EndpointPath is the well-known websocket route on the server.
const EndpointPath = "/ws"

// Default lifecycle delays. The dial delay avoids racing a server
// that is still binding its listener; the reconnect delay is fixed,
// with no backoff growth and no retry cap.
const (
	DefaultDialDelay         = 500 * time.Millisecond
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
)

// writeTimeout bounds a single websocket write.
const writeTimeout = 10 * time.Second

// EndpointURL derives the websocket endpoint from the page origin:
// wss for https origins, ws otherwise, same host and port.
func EndpointURL(origin string) (string, error) {
	parsed, parseErr := url.Parse(origin)
	if parseErr != nil {
		return "", parseErr
	}

	scheme := "ws"
	if parsed.Scheme == "https" || parsed.Scheme == "wss" {
		scheme = "wss"
	}

	endpoint := url.URL{Scheme: scheme, Host: parsed.Host, Path: EndpointPath}

	return endpoint.String(), nil
}

// Config configures a Transport. URL is required; zero durations fall
// back to the defaults above. Callbacks are optional and are invoked
// from the transport's run goroutine, one at a time.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:8765/ws".
	URL string

	// DialDelay is the deliberate pause before the first dial.
	DialDelay time.Duration

	// HeartbeatInterval is the fixed period between liveness pings.
	HeartbeatInterval time.Duration

	// ReconnectDelay is the fixed pause before each reconnect attempt.
	ReconnectDelay time.Duration

	// Logger receives transport diagnostics. Nil means slog.Default.
	Logger *slog.Logger

	// OnEvent is invoked once per decoded event, in frame order.
	OnEvent func(protocol.Event)

	// OnOpen is invoked after each successful (re)connect.
	OnOpen func()

	// OnClose is invoked after each disconnect, clean or not.
	OnClose func()

	// OnError is invoked on transport errors. The transport does not
	// close the channel itself; closure follows from the underlying
	// connection's own error behavior.
	OnError func(error)
}

// Transport maintains exactly one logical connection to the server,
// hiding physical reconnects from its consumer.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	connected atomic.Bool

	writeMu sync.Mutex
	conn    *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Transport. Call Run to open the channel.
func New(cfg Config) *Transport {
	if cfg.DialDelay == 0 {
		cfg.DialDelay = DefaultDialDelay
	}

	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		cfg:    cfg,
		logger: logger,
		closed: make(chan struct{}),
	}
}

// Connected reports whether the channel is currently open. False
// doubles as the "connection degraded" indicator while reconnects are
// in flight.
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// Run opens the channel after the configured dial delay and keeps it
// open until ctx is cancelled or Close is called: every disconnect
// schedules a reconnect after the fixed delay, indefinitely. Run
// blocks; events are delivered on its goroutine, so one event is
// always applied to completion before the next.
func (t *Transport) Run(ctx context.Context) {
	if !t.sleep(ctx, t.cfg.DialDelay) {
		return
	}

	for {
		t.runOnce(ctx)

		if t.stopped(ctx) {
			return
		}

		t.logger.DebugContext(ctx, "scheduling reconnect", "delay", t.cfg.ReconnectDelay)

		if !t.sleep(ctx, t.cfg.ReconnectDelay) {
			return
		}
	}
}

// Close tears the channel down intentionally: the connection is
// closed, the heartbeat stops, and no further reconnect is scheduled.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
	})

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn != nil {
		_ = t.conn.Close()
	}
}

// Send serializes the command and transmits it immediately if the
// channel is open. While disconnected the command is dropped without
// queueing or retry; callers must not assume delivery.
func (t *Transport) Send(cmd protocol.Command) {
	if !t.connected.Load() {
		t.logger.Debug("dropping command while disconnected", "type", cmd.CommandType())

		return
	}

	frame, marshalErr := protocol.MarshalCommand(cmd)
	if marshalErr != nil {
		t.logger.Warn("dropping unmarshalable command", "type", cmd.CommandType(), "error", marshalErr)

		return
	}

	t.writeMu.Lock()

	conn := t.conn
	if conn == nil {
		t.writeMu.Unlock()

		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	writeErr := conn.WriteMessage(websocket.TextMessage, frame)
	t.writeMu.Unlock()

	// Reported outside the lock so an error callback may call Send.
	if writeErr != nil {
		t.reportError(writeErr)
	}
}

// runOnce performs one dial-read-close cycle.
func (t *Transport) runOnce(ctx context.Context) {
	conn, _, dialErr := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, nil)
	if dialErr != nil {
		t.reportError(dialErr)

		return
	}

	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()

	t.connected.Store(true)
	t.logger.InfoContext(ctx, "connected", "url", t.cfg.URL)

	if t.cfg.OnOpen != nil {
		t.cfg.OnOpen()
	}

	heartbeatDone := make(chan struct{})
	go t.heartbeatLoop(heartbeatDone)

	t.readLoop(ctx, conn)

	// Closing the connection stops the heartbeat with it.
	close(heartbeatDone)
	t.connected.Store(false)

	t.writeMu.Lock()
	t.conn = nil
	t.writeMu.Unlock()

	_ = conn.Close()

	t.logger.InfoContext(ctx, "disconnected", "url", t.cfg.URL)

	if t.cfg.OnClose != nil {
		t.cfg.OnClose()
	}
}

// readLoop decodes inbound frames until the connection drops. A frame
// that fails to decode is discarded with a warning; the connection
// stays open.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, frame, readErr := conn.ReadMessage()
		if readErr != nil {
			if !t.stopped(ctx) && !errors.Is(readErr, websocket.ErrCloseSent) {
				t.reportError(readErr)
			}

			return
		}

		events, decodeErr := protocol.DecodeFrame(frame)
		if decodeErr != nil {
			t.logger.WarnContext(ctx, "discarding malformed frame", "error", decodeErr)

			continue
		}

		if t.cfg.OnEvent != nil {
			for _, event := range events {
				t.cfg.OnEvent(event)
			}
		}
	}
}

// heartbeatLoop sends a liveness ping at the fixed interval. The ping
// carries the current wall clock in Unix milliseconds and expects no
// application-level response.
func (t *Transport) heartbeatLoop(done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Send(protocol.HeartbeatCommand{Timestamp: time.Now().UnixMilli()})
		case <-done:
			return
		case <-t.closed:
			return
		}
	}
}

func (t *Transport) reportError(err error) {
	t.logger.Warn("transport error", "error", err)

	if t.cfg.OnError != nil {
		t.cfg.OnError(err)
	}
}

// stopped reports whether the transport should give up for good.
func (t *Transport) stopped(ctx context.Context) bool {
	select {
	case <-t.closed:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d unless the transport stops first. It returns
// false when the wait was interrupted by teardown.
func (t *Transport) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-t.closed:
		return false
	case <-ctx.Done():
		return false
	}
}
