//go:generate go run go.uber.org/mock/mockgen -source=deps.go -destination=mocks/mock_deps.go -package=mocks
package chat

import (
	"context"
	"time"
)

// ConnID identifies a live transport connection. The empty value means the
// user has no connection to push to.
type ConnID string

// IDGenerator issues opaque unique identifiers for messages and sessions.
type IDGenerator interface {
	NewID() string
}

// Clock stamps new messages.
type Clock interface {
	Now() time.Time
}

// PasswordHasher turns passwords into stored hashes and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, encodedHash string) (bool, error)
}

// Notifier pushes a posted message down a live connection. Implementations
// resolve conn at send time and must fail fast when it is gone.
type Notifier interface {
	Notify(ctx context.Context, conn ConnID, msg Message) error
}
