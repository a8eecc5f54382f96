package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/auth"
	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/clock"
	"github.com/Tyrowin/channelchat/internal/identity"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

const readTimeout = 2 * time.Second

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func newTestService(notifier chat.Notifier) *chat.Service {
	ids := identity.NewUUIDGenerator()
	hasher := auth.NewHasher(auth.Params{Memory: 64, Iterations: 1, Parallelism: 1})
	return chat.NewService(testLogger(), chat.NewChannelStore(), chat.NewUserDirectory(hasher, ids),
		ids, clock.System{}, notifier)
}

// startTestServer runs a ChatServer on a random local port and stops it
// when the test ends.
func startTestServer(t *testing.T, configure func(*Config)) (*ChatServer, string) {
	t.Helper()

	cfg := NewConfig()
	cfg.Port = "127.0.0.1:0"
	if configure != nil {
		configure(cfg)
	}

	log := testLogger()
	hub := NewHub(log)
	srv := New(*cfg, log, hub, newTestService(hub), identity.NewUUIDGenerator())
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	return srv, "ws://" + srv.Addr() + "/ws"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeRequest(t *testing.T, conn *websocket.Conn, id uint64, op string, session *protocol.Session, args ...any) {
	t.Helper()
	req, err := protocol.NewRequest(id, op, session, args...)
	require.NoError(t, err)
	data, err := protocol.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.Decode(data)
	require.NoError(t, err)
	return frame
}

func readResponse(t *testing.T, conn *websocket.Conn) protocol.Response {
	t.Helper()
	frame := readFrame(t, conn)
	resp, err := frame.Response()
	require.NoError(t, err)
	return resp
}

// roundTrip sends one request and waits for its response.
func roundTrip(t *testing.T, conn *websocket.Conn, id uint64, op string, session *protocol.Session, args ...any) protocol.Response {
	t.Helper()
	writeRequest(t, conn, id, op, session, args...)
	resp := readResponse(t, conn)
	require.Equal(t, id, resp.ID)
	return resp
}

func login(t *testing.T, conn *websocket.Conn, name, password string) *protocol.Session {
	t.Helper()
	resp := roundTrip(t, conn, 1, protocol.OpAuth, nil, name, password)
	require.Nil(t, resp.Error)
	var session protocol.Session
	require.NoError(t, json.Unmarshal(resp.Result, &session))
	return &session
}

func readMessageEvent(t *testing.T, conn *websocket.Conn) protocol.MessageRecord {
	t.Helper()
	name, args, err := readFrame(t, conn).Event()
	require.NoError(t, err)
	require.Equal(t, protocol.EventMessage, name)
	require.Len(t, args, 1)
	var record protocol.MessageRecord
	require.NoError(t, json.Unmarshal(args[0], &record))
	return record
}

// expectSilence fails if conn receives a frame within d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", data)
	require.True(t, strings.Contains(err.Error(), "timeout"), "unexpected error %v", err)
}
