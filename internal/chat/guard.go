package chat

import "fmt"

// Credentials is the identity a caller claims on a protected request.
type Credentials struct {
	Name  string
	Token string
}

// Session is an identity that has passed validation. Its fields are
// unexported so the only ways to obtain one are UserDirectory.Authenticate
// and Guard.Validate.
type Session struct {
	name  string
	token string
}

// Name is the authenticated user name.
func (s Session) Name() string { return s.name }

// Token is the session token.
func (s Session) Token() string { return s.token }

// Credentials returns the pair a client presents on later requests.
func (s Session) Credentials() Credentials {
	return Credentials{Name: s.name, Token: s.token}
}

// Guard checks claimed credentials against the user directory before any
// protected operation runs.
type Guard struct {
	users *UserDirectory
}

// NewGuard returns a Guard backed by users.
func NewGuard(users *UserDirectory) *Guard {
	return &Guard{users: users}
}

// Validate turns credentials into a Session, or fails with ErrPermission
// when the token is not the user's current one.
func (g *Guard) Validate(c Credentials) (Session, error) {
	if !g.users.IsValidSession(c.Name, c.Token) {
		return Session{}, fmt.Errorf("session for %q: %w", c.Name, ErrPermission)
	}
	return Session{name: c.Name, token: c.Token}, nil
}
