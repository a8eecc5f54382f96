// Package identity hands out the opaque identifiers used for message ids and
// session tokens.
package identity

import "github.com/google/uuid"

// Generator produces process-unique opaque identifiers.
type Generator interface {
	NewID() string
}

// UUIDGenerator issues random (version 4) UUID strings.
type UUIDGenerator struct{}

// NewUUIDGenerator returns a Generator backed by google/uuid.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// NewID returns a fresh UUIDv4 string. It never fails: uuid.NewString panics
// only when the system entropy source is broken.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
