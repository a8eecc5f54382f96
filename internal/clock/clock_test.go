package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/clock"
)

func TestSystem_ReturnsUTC(t *testing.T) {
	req := require.New(t)

	before := time.Now()
	now := clock.System{}.Now()
	after := time.Now()

	req.Equal(time.UTC, now.Location())
	req.False(now.Before(before.Add(-time.Millisecond)))
	req.False(now.After(after.Add(time.Millisecond)))
}

func TestFixed_ReturnsPresetInstant(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, at, clock.Fixed{At: at}.Now())
}
