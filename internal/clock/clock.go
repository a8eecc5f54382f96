// Package clock supplies timestamps for message stamping.
package clock

import "time"

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, always in UTC.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

// Now implements Clock.
func (f Fixed) Now() time.Time {
	return f.At
}
