package chat_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/chat"
)

func TestChannelStore_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	store := chat.NewChannelStore()

	req.True(store.Join("main", "nik"))
	req.False(store.Join("main", "nik"))
	req.True(store.Join("main", "ann"))

	members, err := store.Members("main")
	req.NoError(err)
	req.Equal([]string{"nik", "ann"}, members)
}

func TestChannelStore_ChannelNamesInCreationOrder(t *testing.T) {
	req := require.New(t)
	store := chat.NewChannelStore()

	store.EnsureChannel("main")
	store.Join("random", "nik")
	store.EnsureChannel("main")
	store.EnsureChannel("dev")

	req.Equal([]string{"main", "random", "dev"}, store.ChannelNames())
}

func TestChannelStore_UnknownChannel(t *testing.T) {
	req := require.New(t)
	store := chat.NewChannelStore()

	_, err := store.Append("nowhere", chat.Message{ID: "1"})
	req.ErrorIs(err, chat.ErrNotFound)

	_, err = store.History("nowhere")
	req.ErrorIs(err, chat.ErrNotFound)

	_, err = store.Members("nowhere")
	req.ErrorIs(err, chat.ErrNotFound)

	req.Empty(store.ChannelNames())
}

func TestChannelStore_HistoryKeepsAppendOrder(t *testing.T) {
	req := require.New(t)
	store := chat.NewChannelStore()
	store.EnsureChannel("main")

	for i := 0; i < 5; i++ {
		_, err := store.Append("main", chat.Message{ID: fmt.Sprint(i), Content: fmt.Sprintf("m%d", i)})
		req.NoError(err)
	}

	history, err := store.History("main")
	req.NoError(err)
	req.Len(history, 5)
	for i, msg := range history {
		req.Equal(fmt.Sprint(i), msg.ID)
	}
}

func TestChannelStore_HistoryIsACopy(t *testing.T) {
	req := require.New(t)
	store := chat.NewChannelStore()
	store.EnsureChannel("main")
	_, err := store.Append("main", chat.Message{ID: "1", Content: "original"})
	req.NoError(err)

	history, err := store.History("main")
	req.NoError(err)
	history[0].Content = "changed"

	again, err := store.History("main")
	req.NoError(err)
	req.Equal("original", again[0].Content)
}

func TestChannelStore_ConcurrentAppendsAcrossChannels(t *testing.T) {
	req := require.New(t)
	store := chat.NewChannelStore()
	channels := []string{"a", "b", "c", "d"}

	const perChannel = 100
	var wg sync.WaitGroup
	for _, name := range channels {
		for i := 0; i < perChannel; i++ {
			wg.Add(1)
			go func(name string, i int) {
				defer wg.Done()
				store.Join(name, fmt.Sprintf("user-%d", i%10))
				_, err := store.Append(name, chat.Message{ID: fmt.Sprintf("%s-%d", name, i)})
				req.NoError(err)
			}(name, i)
		}
	}
	wg.Wait()

	for _, name := range channels {
		history, err := store.History(name)
		req.NoError(err)
		req.Len(history, perChannel)

		members, err := store.Members(name)
		req.NoError(err)
		req.Len(members, 10)
	}
}
