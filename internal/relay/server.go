package relay

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"emberdrop/internal/history"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config wires the HTTP surface around the relay core.
type Config struct {
	Addr       string // e.g. ":8080"
	Build      BuildInfo
	Controller *Controller
	Hub        *Hub
	History    *history.Store // nil when the share log is disabled

	// ConnectRate caps websocket session openings per IP per minute.
	// Zero uses the default.
	ConnectRate int
}

const defaultConnectRate = 30

// Server is the HTTP/websocket front of the relay.
type Server struct {
	cfg        Config
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func New(cfg Config) *Server {
	if cfg.ConnectRate <= 0 {
		cfg.ConnectRate = defaultConnectRate
	}

	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay carries no credentials and rooms gate on codes,
			// so cross-origin pages may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", NewPrometheusExporter(cfg.Build.Version, cfg.Controller.Rooms(), cfg.Hub).Handler())

	wsLimiter := newRateLimiter(cfg.ConnectRate, time.Minute)
	mux.Handle("/ws", wsLimiter.middleware(http.HandlerFunc(s.handleWS)))

	// Wrap middleware: requestID -> logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// handleWS upgrades the connection and runs the client pumps until the
// peer disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		Warn("websocket upgrade failed", map[string]any{"ip": getClientIP(r), "err": err.Error()})
		return
	}
	NewClient(s.cfg.Controller, s.cfg.Hub, conn).Run()
}

// Handler exposes the composed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
