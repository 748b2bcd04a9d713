package config

import "time"

const (
	// Messages
	MessageTombstone        = "This message was deleted"
	DefaultFetchLimit       = 50
	MaxFetchLimit           = 200
	DefaultMaxMessageLength = 4000

	// Broadcast groups
	UserGroupPrefix         = "user:"
	ConversationGroupPrefix = "conversation:"

	// WebSocket
	WriteWait        = 10 * time.Second
	PongWait         = 60 * time.Second
	PingPeriod       = (PongWait * 9) / 10
	MaxFrameSize     = 16 << 10
	ClientSendBuffer = 256

	// Per-connection inbound events
	DefaultSendRate  = 10
	DefaultSendBurst = 20
)
