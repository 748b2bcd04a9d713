package models

import "encoding/json"

// Event types exchanged over the real-time channel.
const (
	EventJoin           = "join"
	EventLeave          = "leave"
	EventJoined         = "joined"
	EventLeft           = "left"
	EventSendMessage    = "sendMessage"
	EventMessage        = "message"
	EventDeleteMessage  = "deleteMessage"
	EventMessageDeleted = "messageDeleted"
	EventFriendUpdate   = "friendUpdate"
	EventError          = "error"
)

// Event is the envelope of every frame on the real-time channel.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes payload as the event's data. A nil payload produces an
// event without data.
func NewEvent(eventType string, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: eventType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: raw}, nil
}

// Decode unmarshals the event data into dst.
func (e Event) Decode(dst any) error {
	if len(e.Data) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(e.Data, dst)
}

type JoinPayload struct {
	ConversationID uint `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID uint   `json:"conversationId"`
	Content        string `json:"content"`
}

type DeleteMessagePayload struct {
	ConversationID uint `json:"conversationId"`
	MessageID      uint `json:"messageId"`
}

type JoinedPayload struct {
	ConversationID uint `json:"conversationId"`
}

type MessageDeletedPayload struct {
	ConversationID uint   `json:"conversationId"`
	MessageID      uint   `json:"messageId"`
	Content        string `json:"content"`
}

// ErrorPayload is sent only to the connection whose event failed.
type ErrorPayload struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	Event          string `json:"event,omitempty"`
	ConversationID uint   `json:"conversationId,omitempty"`
}
