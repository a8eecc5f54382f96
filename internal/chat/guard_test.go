package chat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelchat/internal/chat"
)

func TestGuard_Validate(t *testing.T) {
	dir := newDirectory(t)
	guard := chat.NewGuard(dir)

	old, err := dir.Authenticate("nik", "123", "")
	require.NoError(t, err)
	current, err := dir.Authenticate("nik", "123", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		creds   chat.Credentials
		wantErr bool
	}{
		{"current token", current.Credentials(), false},
		{"token of a previous session", old.Credentials(), true},
		{"unknown user", chat.Credentials{Name: "ghost", Token: current.Token()}, true},
		{"missing token", chat.Credentials{Name: "nik"}, true},
		{"empty credentials", chat.Credentials{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			session, err := guard.Validate(tt.creds)
			if tt.wantErr {
				req.ErrorIs(err, chat.ErrPermission)
				req.Equal(chat.Session{}, session)
				return
			}
			req.NoError(err)
			req.Equal("nik", session.Name())
			req.Equal(current.Token(), session.Token())
		})
	}
}

func TestKindRoundTrip(t *testing.T) {
	req := require.New(t)
	for _, err := range []error{chat.ErrAuth, chat.ErrPermission, chat.ErrNotFound, chat.ErrConflict, chat.ErrValidation} {
		kind, ok := chat.KindOf(err)
		req.True(ok)
		req.ErrorIs(chat.ErrorForKind(kind), err)
	}

	_, ok := chat.KindOf(nil)
	req.False(ok)
	req.Nil(chat.ErrorForKind("SomethingElse"))
}
