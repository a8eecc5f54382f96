package chat

import (
	"fmt"
	"slices"
	"sync"
)

type channel struct {
	mu       sync.RWMutex
	members  []string
	joined   map[string]struct{}
	messages []Message
}

// ChannelStore owns every channel's membership and message history. The
// store lock only guards the name index; each channel has its own lock so a
// busy channel never blocks the others.
type ChannelStore struct {
	mu       sync.RWMutex
	channels map[string]*channel
	order    []string
}

// NewChannelStore returns an empty store.
func NewChannelStore() *ChannelStore {
	return &ChannelStore{channels: make(map[string]*channel)}
}

// EnsureChannel creates name if it does not exist yet.
func (s *ChannelStore) EnsureChannel(name string) {
	s.ensure(name)
}

func (s *ChannelStore) ensure(name string) *channel {
	s.mu.RLock()
	ch, ok := s.channels[name]
	s.mu.RUnlock()
	if ok {
		return ch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok = s.channels[name]; ok {
		return ch
	}
	ch = &channel{joined: make(map[string]struct{})}
	s.channels[name] = ch
	s.order = append(s.order, name)
	return ch
}

func (s *ChannelStore) lookup(name string) (*channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", name, ErrNotFound)
	}
	return ch, nil
}

// Join ensures the channel and adds user to it. It reports whether the user
// was newly added; joining twice is a no-op.
func (s *ChannelStore) Join(name, user string) bool {
	ch := s.ensure(name)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.joined[user]; ok {
		return false
	}
	ch.joined[user] = struct{}{}
	ch.members = append(ch.members, user)
	return true
}

// ChannelNames lists every channel in creation order.
func (s *ChannelStore) ChannelNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Append adds msg to the end of the channel's history.
func (s *ChannelStore) Append(name string, msg Message) (Message, error) {
	ch, err := s.lookup(name)
	if err != nil {
		return Message{}, err
	}

	ch.mu.Lock()
	ch.messages = append(ch.messages, msg)
	ch.mu.Unlock()
	return msg, nil
}

// History returns the channel's messages, oldest first.
func (s *ChannelStore) History(name string) ([]Message, error) {
	ch, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return slices.Clone(ch.messages), nil
}

// Members returns the channel's members in join order.
func (s *ChannelStore) Members(name string) ([]string, error) {
	ch, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return slices.Clone(ch.members), nil
}
