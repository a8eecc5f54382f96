// Package chat implements channel membership, message history, user
// sessions and broadcast delivery for the chat server.
package chat

import "time"

// Message is an immutable chat line posted to a channel.
type Message struct {
	ID        string
	From      string
	To        string
	Content   string
	Timestamp time.Time
}
