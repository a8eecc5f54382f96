package chat_test

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/channelchat/internal/auth"
	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/identity"
)

var cheapParams = auth.Params{Memory: 64, Iterations: 1, Parallelism: 1}

func newDirectory(t *testing.T) *chat.UserDirectory {
	t.Helper()
	return chat.NewUserDirectory(auth.NewHasher(cheapParams), identity.NewUUIDGenerator())
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}
