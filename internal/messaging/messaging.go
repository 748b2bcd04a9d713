// Package messaging persists messages and broadcasts them to the
// conversation's live sessions.
package messaging

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"
)

// Broadcaster delivers an event to every session joined to a conversation.
type Broadcaster interface {
	BroadcastToConversation(ctx context.Context, conversationID uint, event models.Event)
}

// Alerter reaches a recipient outside the real-time channel.
type Alerter interface {
	NewMessage(ctx context.Context, recipientID uint, msg *models.Message)
}

type Service struct {
	store       storage.Storage
	broadcaster Broadcaster
	alerter     Alerter
	metrics     *metrics.Metrics
	log         *logger.Logger

	defaultLimit int
	maxLimit     int
	maxLength    int

	// Sends and deletes of one conversation hold its lock from insert to
	// broadcast so broadcast order equals commit order. Entries live only
	// while someone holds or waits for them.
	locksMu sync.Mutex
	locks   map[uint]*conversationLock
}

type conversationLock struct {
	sync.Mutex
	refs int
}

func NewService(store storage.Storage, broadcaster Broadcaster, m *metrics.Metrics, log *logger.Logger, cfg config.Chat) *Service {
	return &Service{
		store:        store,
		broadcaster:  broadcaster,
		metrics:      m,
		log:          log.With("service", "MessagingService"),
		defaultLimit: cfg.DefaultFetchLimit,
		maxLimit:     cfg.MaxFetchLimit,
		maxLength:    cfg.MaxMessageLength,
		locks:        make(map[uint]*conversationLock),
	}
}

// WithAlerter enables out-of-band alerts for new messages.
func (s *Service) WithAlerter(a Alerter) *Service {
	s.alerter = a
	return s
}

func (s *Service) lock(conversationID uint) func() {
	s.locksMu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &conversationLock{}
		s.locks[conversationID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, conversationID)
		}
		s.locksMu.Unlock()
	}
}

// Authorize loads the conversation and checks that userID takes part in it.
// It always reads the store.
func (s *Service) Authorize(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	if conversationID == 0 {
		return nil, apperr.InvalidArg("conversationId is required")
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return nil, apperr.Internal("load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return conv, nil
}

// Send persists the message and then broadcasts it to the conversation group.
// The returned message is the broadcast payload.
func (s *Service) Send(ctx context.Context, conversationID, senderID uint, content string) (*models.Message, error) {
	if conversationID == 0 {
		return nil, apperr.InvalidArg("conversationId is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidArg("content must not be empty")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, apperr.InvalidArg("content is too long")
	}

	unlock := s.lock(conversationID)
	defer unlock()

	conv, err := s.Authorize(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ConversationID: conv.ID, SenderID: senderID, Content: content}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if storage.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, apperr.Internal("persist message", err)
	}
	s.metrics.MessagePersisted()

	ev, err := models.NewEvent(models.EventMessage, msg)
	if err != nil {
		return nil, apperr.Internal("encode message event", err)
	}
	s.broadcaster.BroadcastToConversation(ctx, conv.ID, ev)

	if s.alerter != nil {
		s.alerter.NewMessage(ctx, conv.OtherParticipant(senderID), msg)
	}
	s.log.Debug("message sent", "conversation_id", conv.ID, "message_id", msg.ID, "sender_id", senderID)
	return msg, nil
}

// Fetch returns up to limit of the most recent messages, newest first. A
// non-positive limit selects the default; larger limits are capped.
func (s *Service) Fetch(ctx context.Context, conversationID, requesterID uint, limit int) ([]models.Message, error) {
	if _, err := s.Authorize(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListRecentMessages(ctx, conversationID, s.clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *Service) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}

// Delete tombstones a message on behalf of its sender and broadcasts the
// deletion. Deleting an already deleted message returns it unchanged without
// a second broadcast.
func (s *Service) Delete(ctx context.Context, conversationID, requesterID, messageID uint) (*models.Message, error) {
	if messageID == 0 {
		return nil, apperr.InvalidArg("messageId is required")
	}

	unlock := s.lock(conversationID)
	defer unlock()

	conv, err := s.Authorize(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && msg.ConversationID != conv.ID) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, apperr.Internal("load message", err)
	}
	if msg.SenderID != requesterID {
		return nil, apperr.Forbidden("only the sender can delete a message")
	}
	if msg.Deleted {
		return msg, nil
	}

	msg, err = s.store.TombstoneMessage(ctx, messageID, config.MessageTombstone)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, apperr.Internal("delete message", err)
	}
	s.metrics.MessageDeleted()

	ev, err := models.NewEvent(models.EventMessageDeleted, models.MessageDeletedPayload{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Content:        msg.Content,
	})
	if err != nil {
		return nil, apperr.Internal("encode delete event", err)
	}
	s.broadcaster.BroadcastToConversation(ctx, conv.ID, ev)
	return msg, nil
}

// Chronological returns a copy of msgs ordered oldest first.
func Chronological(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
