// Package server is the remote collaborator of the browser session: it
// inspects git repositories on local disk and streams typed events
// over a websocket endpoint, applying client commands to a per
// connection session. The transport is a single trusted local-network
// connection; there is no authentication layer.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sumatoshi-tech/diffodil/internal/gitcli"
)

// Outbound batching parameters: a frame is flushed once it holds
// maxBatchSize events or after maxBatchDelay, whichever comes first.
const (
	maxBatchSize  = 100
	maxBatchDelay = 100 * time.Millisecond
)

// txQueueSize bounds the per-connection outbound queue.
const txQueueSize = 10000

// tagListLimit caps the number of tags pushed to a client.
const tagListLimit = 50

// Config configures a Server.
type Config struct {
	// Repos is the set of repositories discovered under the root,
	// pushed to every client on connect.
	Repos []string

	// StaticDir optionally serves the web page from disk.
	StaticDir string

	// Logger receives server diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// Server accepts websocket sessions and answers git queries.
type Server struct {
	logger    *slog.Logger
	git       *gitcli.Client
	repos     []string
	staticDir string
	metrics   *Metrics
	upgrader  websocket.Upgrader
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		logger:    logger,
		git:       gitcli.New(logger),
		repos:     cfg.Repos,
		staticDir: cfg.StaticDir,
		metrics:   NewMetrics(),
		upgrader: websocket.Upgrader{
			// Trusted local network, same-origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP mux: the websocket endpoint, the metrics
// scrape endpoint, and optionally the static page.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.Handle("/metrics", s.metrics.Handler())

	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}

	return mux
}

// handleWebsocket upgrades the connection and runs the session until
// the peer goes away.
func (s *Server) handleWebsocket(responseWriter http.ResponseWriter, request *http.Request) {
	wsConn, upgradeErr := s.upgrader.Upgrade(responseWriter, request, nil)
	if upgradeErr != nil {
		s.logger.Warn("websocket upgrade failed", "error", upgradeErr)

		return
	}

	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()

	defer s.metrics.ConnectionsActive.Dec()

	conn := newConnection(s, wsConn)

	s.logger.Info("websocket session opened", "remote", request.RemoteAddr)
	conn.run(request.Context())
	s.logger.Info("websocket session closed", "remote", request.RemoteAddr)
}
