package chathub

import (
	"context"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"
)

// Conversations is the message pipeline as seen by the real-time channel.
type Conversations interface {
	Authorize(ctx context.Context, conversationID, userID uint) (*models.Conversation, error)
	Send(ctx context.Context, conversationID, senderID uint, content string) (*models.Message, error)
	Delete(ctx context.Context, conversationID, requesterID, messageID uint) (*models.Message, error)
}

// Dispatcher runs inbound events of a connection. Failures are reported to
// that connection only and never close it.
type Dispatcher struct {
	hub   *Hub
	convs Conversations
	log   *logger.Logger
}

func NewDispatcher(hub *Hub, convs Conversations, log *logger.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, convs: convs, log: log.With("component", "Dispatcher")}
}

func (d *Dispatcher) Handle(ctx context.Context, c Client, ev models.Event) {
	switch ev.Type {
	case models.EventJoin:
		d.handleJoin(ctx, c, ev)
	case models.EventLeave:
		d.handleLeave(c, ev)
	case models.EventSendMessage:
		d.handleSend(ctx, c, ev)
	case models.EventDeleteMessage:
		d.handleDelete(ctx, c, ev)
	default:
		d.Error(c, ev.Type, 0, apperr.InvalidArg("unknown event type"))
	}
}

// Authorization is re-read from the store on every join.
func (d *Dispatcher) handleJoin(ctx context.Context, c Client, ev models.Event) {
	var p models.JoinPayload
	if err := ev.Decode(&p); err != nil {
		d.Error(c, ev.Type, 0, apperr.InvalidArg("malformed payload"))
		return
	}
	if _, err := d.convs.Authorize(ctx, p.ConversationID, c.GetUserID()); err != nil {
		d.Error(c, ev.Type, p.ConversationID, err)
		return
	}
	d.hub.Join(c, p.ConversationID)
	d.reply(c, models.EventJoined, models.JoinedPayload{ConversationID: p.ConversationID})
}

func (d *Dispatcher) handleLeave(c Client, ev models.Event) {
	var p models.JoinPayload
	if err := ev.Decode(&p); err != nil || p.ConversationID == 0 {
		d.Error(c, ev.Type, 0, apperr.InvalidArg("malformed payload"))
		return
	}
	d.hub.Leave(c, p.ConversationID)
	d.reply(c, models.EventLeft, models.JoinedPayload{ConversationID: p.ConversationID})
}

// The pipeline broadcasts the persisted message; the sender's connection
// receives it through the conversation group like everyone else.
func (d *Dispatcher) handleSend(ctx context.Context, c Client, ev models.Event) {
	var p models.SendMessagePayload
	if err := ev.Decode(&p); err != nil {
		d.Error(c, ev.Type, 0, apperr.InvalidArg("malformed payload"))
		return
	}
	if _, err := d.convs.Send(ctx, p.ConversationID, c.GetUserID(), p.Content); err != nil {
		d.Error(c, ev.Type, p.ConversationID, err)
	}
}

func (d *Dispatcher) handleDelete(ctx context.Context, c Client, ev models.Event) {
	var p models.DeleteMessagePayload
	if err := ev.Decode(&p); err != nil {
		d.Error(c, ev.Type, 0, apperr.InvalidArg("malformed payload"))
		return
	}
	if _, err := d.convs.Delete(ctx, p.ConversationID, c.GetUserID(), p.MessageID); err != nil {
		d.Error(c, ev.Type, p.ConversationID, err)
	}
}

func (d *Dispatcher) reply(c Client, eventType string, payload any) {
	out, err := models.NewEvent(eventType, payload)
	if err != nil {
		d.log.Error("encode reply", "type", eventType, "error", err)
		return
	}
	d.hub.Send(c, out)
}

// Error sends a scoped error event to c.
func (d *Dispatcher) Error(c Client, eventType string, conversationID uint, err error) {
	appErr := apperr.As(err)
	if appErr.Code == apperr.CodeInternal {
		d.log.Error("event failed", "type", eventType, "user_id", c.GetUserID(), "error", err)
	}
	d.reply(c, models.EventError, models.ErrorPayload{
		Code:           string(appErr.Code),
		Message:        appErr.PublicMessage(),
		Event:          eventType,
		ConversationID: conversationID,
	})
}
