package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Tyrowin/channelchat/internal/auth"
)

// Service implements the chat operations on top of the channel store and
// user directory. Protected operations take a Session, which only the Guard
// or Authenticate can produce.
type Service struct {
	log      *slog.Logger
	channels *ChannelStore
	users    *UserDirectory
	guard    *Guard
	ids      IDGenerator
	clock    Clock
	notifier Notifier
}

// NewService wires the chat operations together.
func NewService(log *slog.Logger, channels *ChannelStore, users *UserDirectory,
	ids IDGenerator, clock Clock, notifier Notifier) *Service {
	return &Service{
		log:      log,
		channels: channels,
		users:    users,
		guard:    NewGuard(users),
		ids:      ids,
		clock:    clock,
		notifier: notifier,
	}
}

// Guard returns the session guard used for protected operations.
func (s *Service) Guard() *Guard {
	return s.guard
}

// Authenticate logs name in (creating it on first use) and records conn as
// its live connection.
func (s *Service) Authenticate(_ context.Context, name, password string, conn ConnID) (Session, error) {
	if err := auth.ValidateCredentials(name, password); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	session, err := s.users.Authenticate(name, password, conn)
	if err != nil {
		return Session{}, err
	}

	s.log.Info("user authenticated", "user", name, "conn_id", conn)
	return session, nil
}

// Disconnect drops conn as name's live connection once its socket is gone.
func (s *Service) Disconnect(name string, conn ConnID) {
	s.users.Detach(name, conn)
}

// Channels lists every known channel.
func (s *Service) Channels(_ context.Context) []string {
	return s.channels.ChannelNames()
}

// Join adds the session's user to channel, creating the channel if needed.
func (s *Service) Join(_ context.Context, session Session, channel string) error {
	if err := auth.ValidateChannelName(channel); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if s.channels.Join(channel, session.name) {
		s.log.Info("user joined channel", "user", session.name, "channel", channel)
	}
	return nil
}

// PostMessage appends content to channel and pushes it to every other member
// that has a live connection. Delivery is best effort: a failed push is
// logged and skipped, and never fails the post.
func (s *Service) PostMessage(ctx context.Context, session Session, channel, content string) (Message, error) {
	stored, err := s.channels.Append(channel, Message{
		ID:        s.ids.NewID(),
		From:      session.name,
		To:        channel,
		Content:   content,
		Timestamp: s.clock.Now(),
	})
	if err != nil {
		return Message{}, err
	}

	members, err := s.channels.Members(channel)
	if err != nil {
		return stored, nil
	}
	for _, member := range lo.Without(members, session.name) {
		conn, ok := s.users.Connection(member)
		if !ok {
			continue
		}
		if err := s.notifier.Notify(ctx, conn, stored); err != nil {
			s.log.Debug("message delivery skipped",
				"user", member,
				"channel", channel,
				"conn_id", conn,
				"error", err)
		}
	}
	return stored, nil
}

// Messages returns channel's history, oldest first.
func (s *Service) Messages(_ context.Context, _ Session, channel string) ([]Message, error) {
	return s.channels.History(channel)
}
