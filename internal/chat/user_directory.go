package chat

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type user struct {
	passwordHash string
	token        string
	conn         ConnID
}

// UserDirectory owns user records: password hash, current session token and
// the id of the user's live connection.
type UserDirectory struct {
	mu     sync.RWMutex
	users  map[string]*user
	hasher PasswordHasher
	ids    IDGenerator
}

// NewUserDirectory returns an empty directory.
func NewUserDirectory(hasher PasswordHasher, ids IDGenerator) *UserDirectory {
	return &UserDirectory{
		users:  make(map[string]*user),
		hasher: hasher,
		ids:    ids,
	}
}

// Authenticate logs name in, creating the user on first use. An existing
// user must present the same password. On success the user gets a fresh
// session token and conn becomes its live connection; any previous token
// stops being valid.
func (d *UserDirectory) Authenticate(name, password string, conn ConnID) (Session, error) {
	for {
		d.mu.RLock()
		existing, exists := d.users[name]
		var stored string
		if exists {
			stored = existing.passwordHash
		}
		d.mu.RUnlock()

		// Hashing is slow; keep it outside the lock. A stored hash never
		// changes once written, so the snapshot stays valid.
		var hash string
		if exists {
			ok, err := d.hasher.Compare(password, stored)
			if err != nil {
				return Session{}, fmt.Errorf("compare password for %q: %w", name, err)
			}
			if !ok {
				return Session{}, fmt.Errorf("user %q: %w", name, ErrAuth)
			}
		} else {
			h, err := d.hasher.Hash(password)
			if err != nil {
				return Session{}, fmt.Errorf("hash password for %q: %w", name, err)
			}
			hash = h
		}
		token := d.ids.NewID()

		d.mu.Lock()
		u, ok := d.users[name]
		if !exists && ok {
			// Lost a creation race: check against the winner's password.
			d.mu.Unlock()
			continue
		}
		if !ok {
			u = &user{passwordHash: hash}
			d.users[name] = u
		}
		u.token = token
		u.conn = conn
		d.mu.Unlock()

		return Session{name: name, token: token}, nil
	}
}

// IsValidSession reports whether token is name's current session token.
func (d *UserDirectory) IsValidSession(name, token string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[name]
	return ok && u.token != "" && u.token == token
}

// Connection returns the live connection of name, if any.
func (d *UserDirectory) Connection(name string) (ConnID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[name]
	if !ok || u.conn == "" {
		return "", false
	}
	return u.conn, true
}

// Detach forgets conn as name's live connection. It does nothing when the
// user has already re-authenticated on another connection. The session
// token is left alone.
func (d *UserDirectory) Detach(name string, conn ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[name]; ok && u.conn == conn {
		u.conn = ""
	}
}

// Users lists known user names in sorted order.
func (d *UserDirectory) Users() []string {
	d.mu.RLock()
	names := lo.Keys(d.users)
	d.mu.RUnlock()
	slices.Sort(names)
	return names
}
