// Package testhelpers provides common utilities and helper functions for
// testing the channel chat server end to end.
//
// It starts a fully wired server on a random local port and connects
// clients to it, so integration tests only deal with chat behaviour.
package testhelpers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/auth"
	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/client"
	"github.com/Tyrowin/channelchat/internal/clock"
	"github.com/Tyrowin/channelchat/internal/identity"
	"github.com/Tyrowin/channelchat/internal/protocol"
	"github.com/Tyrowin/channelchat/internal/server"
)

// TestOrigin is the browser origin allowed by StartServer's default config.
const TestOrigin = "http://localhost:8080"

// CheapHashParams keeps argon2 fast enough for tests.
var CheapHashParams = auth.Params{Memory: 64, Iterations: 1, Parallelism: 1}

// Server is a running chat server.
type Server struct {
	Chat  *server.ChatServer
	Users *chat.UserDirectory
	Host  string
	Port  int
}

// URL returns the HTTP base URL.
func (s *Server) URL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WSURL returns the WebSocket endpoint URL.
func (s *Server) WSURL() string {
	return "ws://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + "/ws"
}

// Stop shuts the server down and fails the test on error.
func (s *Server) Stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Chat.Stop(ctx))
}

// Logger returns the logger used by test servers and clients.
func Logger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// StartServer starts a server on 127.0.0.1 with a random port. configure may
// adjust the config before start. The server is stopped when the test ends.
func StartServer(t *testing.T, configure func(*server.Config)) *Server {
	t.Helper()

	cfg := server.NewConfig()
	cfg.Port = "127.0.0.1:0"
	cfg.AllowedOrigins = TestOrigin
	if configure != nil {
		configure(cfg)
	}

	log := Logger()
	ids := identity.NewUUIDGenerator()
	hub := server.NewHub(log)
	users := chat.NewUserDirectory(auth.NewHasher(CheapHashParams), ids)
	service := chat.NewService(log, chat.NewChannelStore(), users, ids, clock.System{}, hub)
	srv := server.New(*cfg, log, hub, service, ids)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	host, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return &Server{Chat: srv, Users: users, Host: host, Port: p}
}

// Connect logs name in through a new client. The client is closed when the
// test ends.
func Connect(t *testing.T, s *Server, name, password string, opts ...client.Option) *client.Client {
	t.Helper()
	c := client.New(Logger(), opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx, s.Host, s.Port, name, password))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Inbox collects message events pushed to a client.
type Inbox chan protocol.MessageRecord

// NewInbox registers an Inbox on c.
func NewInbox(c *client.Client) Inbox {
	in := make(Inbox, 256)
	c.OnMessage(func(m protocol.MessageRecord) { in <- m })
	return in
}

// Next waits for the next pushed message.
func (in Inbox) Next(t *testing.T, timeout time.Duration) protocol.MessageRecord {
	t.Helper()
	select {
	case m := <-in:
		return m
	case <-time.After(timeout):
		t.Fatalf("no message received within %v", timeout)
		return protocol.MessageRecord{}
	}
}

// ExpectEmpty fails if a message arrives within d.
func (in Inbox) ExpectEmpty(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case m := <-in:
		t.Fatalf("unexpected message %+v", m)
	case <-time.After(d):
	}
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// DialRaw opens a WebSocket without the chat client, for tests that need to
// send frames the client would never produce.
func DialRaw(t *testing.T, s *Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(s.WSURL(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

// OriginHeader returns a header carrying origin.
func OriginHeader(origin string) http.Header {
	h := http.Header{}
	h.Set("Origin", origin)
	return h
}
