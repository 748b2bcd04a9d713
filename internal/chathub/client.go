package chathub

import "pairchat/backend/internal/models"

// Client is one live connection bound to an authenticated user. A user may
// hold several clients at once (tabs, devices).
type Client interface {
	// GetID returns the connection id, unique per connection instance.
	GetID() string
	// GetUserID returns the authenticated user the connection belongs to.
	GetUserID() uint

	// GetSendChannel returns the channel the hub writes outbound events to.
	// The hub never blocks on it.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the send channel. The hub calls it exactly once, on
	// unregister.
	Close()
}
