package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/client"
	"github.com/Tyrowin/channelchat/internal/protocol"
	"github.com/Tyrowin/channelchat/internal/server"
	"github.com/Tyrowin/channelchat/test/testhelpers"
)

// TestOriginValidation checks the upgrade against the configured allow-list.
func TestOriginValidation(t *testing.T) {
	s := testhelpers.StartServer(t, nil)

	t.Run("Allowed origin", func(t *testing.T) {
		testhelpers.Connect(t, s, "browser", "pw",
			client.WithHeader(testhelpers.OriginHeader(testhelpers.TestOrigin)))
	})

	t.Run("Missing Origin header", func(t *testing.T) {
		testhelpers.Connect(t, s, "native", "pw")
	})

	for _, origin := range []string{
		"http://evil.example.com",
		"https://localhost:8080",
		"http://localhost:9090",
		"not-a-url",
	} {
		t.Run("Rejected "+origin, func(t *testing.T) {
			_, resp, err := testhelpers.DialRaw(t, s, testhelpers.OriginHeader(origin))
			require.Error(t, err)
			require.NotNil(t, resp)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

// TestWildcardOrigin accepts any origin when configured with "*".
func TestWildcardOrigin(t *testing.T) {
	s := testhelpers.StartServer(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = "*"
	})

	testhelpers.Connect(t, s, "anyone", "pw",
		client.WithHeader(testhelpers.OriginHeader("http://anything.example")))
}

// TestMessageSizeLimit checks that a frame over the limit closes the
// connection while frames under it are served.
func TestMessageSizeLimit(t *testing.T) {
	s := testhelpers.StartServer(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 512
	})
	ctx := context.Background()

	c := testhelpers.Connect(t, s, "nik", "pw")
	require.NoError(t, c.Join(ctx, "main"))

	_, err := c.Send(ctx, "main", strings.Repeat("a", 100))
	require.NoError(t, err)

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = c.Send(callCtx, "main", strings.Repeat("a", 1024))
	require.Error(t, err)

	_, err = c.Channels(ctx)
	require.Error(t, err, "connection should be closed after an oversized frame")
}

// TestRateLimiting sends a burst over the limit on a raw socket and expects
// the surplus requests to be answered with RateLimited.
func TestRateLimiting(t *testing.T) {
	s := testhelpers.StartServer(t, func(cfg *server.Config) {
		cfg.RateLimitBurst = 5
		cfg.RateLimitRefill = time.Hour
	})

	conn, _, err := testhelpers.DialRaw(t, s, nil)
	require.NoError(t, err)

	const total = 8
	for id := uint64(1); id <= total; id++ {
		req, err := protocol.NewRequest(id, protocol.OpChannels, nil)
		require.NoError(t, err)
		data, err := protocol.EncodeRequest(req)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}

	limited := 0
	for i := 0; i < total; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		frame, err := protocol.Decode(data)
		require.NoError(t, err)
		resp, err := frame.Response()
		require.NoError(t, err)
		if resp.Error != nil {
			require.Equal(t, protocol.KindRateLimited, resp.Error.Kind)
			limited++
		}
	}
	require.Equal(t, total-5, limited)
}

// TestProtectedOperationsRequireSession sends protected requests without a
// session, then with a forged one.
func TestProtectedOperationsRequireSession(t *testing.T) {
	s := testhelpers.StartServer(t, nil)
	testhelpers.Connect(t, s, "nik", "pw")

	conn, _, err := testhelpers.DialRaw(t, s, nil)
	require.NoError(t, err)

	sessions := []*protocol.Session{nil, {Name: "nik", SessionID: "forged"}, {Name: "ghost", SessionID: "forged"}}
	for i, session := range sessions {
		req, err := protocol.NewRequest(uint64(i+1), protocol.OpJoin, session, "main")
		require.NoError(t, err)
		data, err := protocol.EncodeRequest(req)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		frame, err := protocol.Decode(raw)
		require.NoError(t, err)
		resp, err := frame.Response()
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		require.Equal(t, "PermissionError", resp.Error.Kind)
	}
}
