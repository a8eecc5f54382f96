package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/channelchat/internal/chat"
)

// ErrNotStarted is returned by Stop when Start has not succeeded.
var ErrNotStarted = errors.New("server not started")

// ChatServer binds the WebSocket transport to the chat service. Each
// connection gets its own Client; requests flow through the dispatcher and
// message events flow back out through the Hub.
type ChatServer struct {
	cfg        Config
	log        *slog.Logger
	hub        *Hub
	dispatcher *dispatcher
	ids        chat.IDGenerator
	origins    *originPolicy
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	serveErr chan error
}

// New creates a ChatServer. hub must be the Notifier the service was built
// with so that message events reach this server's connections.
func New(cfg Config, log *slog.Logger, hub *Hub, service *chat.Service, ids chat.IDGenerator) *ChatServer {
	cfg = cfg.Sanitize()
	s := &ChatServer{
		cfg:        cfg,
		log:        log,
		hub:        hub,
		dispatcher: newDispatcher(log, service),
		ids:        ids,
		origins:    newOriginPolicy(log, cfg.Origins()),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Start binds the configured port, starts the hub and begins serving in the
// background. It returns once the listener is open.
func (s *ChatServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return errors.New("server already started")
	}
	if s.hub.ctx.Err() != nil {
		return errors.New("server stopped")
	}

	ln, err := net.Listen("tcp", s.cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Port, err)
	}

	go s.hub.Run()
	s.log.Info("hub started and ready to manage websocket connections")

	srv := CreateServer(s.cfg.Port, s.routes())
	serveErr := make(chan error, 1)
	s.listener = ln
	s.http = srv
	s.serveErr = serveErr

	// Stop may clear s.http before this goroutine runs.
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	s.log.Info("server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *ChatServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound TCP port, which differs from the configured one
// when the configuration asked for port 0.
func (s *ChatServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Stop shuts the HTTP server down, closes every live socket and waits for
// the connection goroutines, bounded by ctx and the shutdown timeout.
func (s *ChatServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	serveErr := s.serveErr
	s.http = nil
	s.mu.Unlock()

	if srv == nil {
		return ErrNotStarted
	}

	s.log.Info("shutting down http server")

	// Hijacked websocket connections are not tracked by http.Server, so the
	// hub closes them.
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Error("http server shutdown error", "error", err)
		errs = append(errs, err)
	}
	if err := s.hub.Shutdown(s.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := <-serveErr; err != nil {
		errs = append(errs, err)
	}

	s.log.Info("server shutdown completed")
	return errors.Join(errs...)
}

// Run starts the server and blocks until ctx is cancelled, then stops it
// within the configured shutdown timeout.
func (s *ChatServer) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	s.log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}
