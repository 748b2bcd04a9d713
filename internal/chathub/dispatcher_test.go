package chathub_test

import (
	"context"
	"testing"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConversations struct {
	mock.Mock
}

func (m *MockConversations) Authorize(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	conv, _ := args.Get(0).(*models.Conversation)
	return conv, args.Error(1)
}

func (m *MockConversations) Send(ctx context.Context, conversationID, senderID uint, content string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockConversations) Delete(ctx context.Context, conversationID, requesterID, messageID uint) (*models.Message, error) {
	args := m.Called(ctx, conversationID, requesterID, messageID)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func setupDispatcher(t *testing.T) (*chathub.Hub, *MockConversations, *chathub.Dispatcher, *MockClient) {
	t.Helper()
	hub := chathub.NewHub(nil, nil, logger.Nop())
	convs := new(MockConversations)
	d := chathub.NewDispatcher(hub, convs, logger.Nop())
	c := newMockClient("c1", 1, 8)
	hub.Register(c)
	return hub, convs, d, c
}

func event(t *testing.T, eventType string, payload any) models.Event {
	t.Helper()
	ev, err := models.NewEvent(eventType, payload)
	require.NoError(t, err)
	return ev
}

func errorPayload(t *testing.T, ev models.Event) models.ErrorPayload {
	t.Helper()
	require.Equal(t, models.EventError, ev.Type)
	var p models.ErrorPayload
	require.NoError(t, ev.Decode(&p))
	return p
}

func TestDispatcher_JoinAuthorized(t *testing.T) {
	ctx := context.Background()
	hub, convs, d, c := setupDispatcher(t)
	convs.On("Authorize", ctx, uint(5), uint(1)).Return(&models.Conversation{ID: 5, UserA: 1, UserB: 2}, nil)

	d.Handle(ctx, c, event(t, models.EventJoin, models.JoinPayload{ConversationID: 5}))

	events := c.drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventJoined, events[0].Type)
	assert.Equal(t, []string{"c1"}, hub.Members(chathub.ConversationGroup(5)))
	convs.AssertExpectations(t)
}

func TestDispatcher_JoinForbidden(t *testing.T) {
	ctx := context.Background()
	hub, convs, d, c := setupDispatcher(t)
	convs.On("Authorize", ctx, uint(5), uint(1)).Return(nil, apperr.Forbidden("not a participant of this conversation"))

	d.Handle(ctx, c, event(t, models.EventJoin, models.JoinPayload{ConversationID: 5}))

	events := c.drain()
	require.Len(t, events, 1)
	p := errorPayload(t, events[0])
	assert.Equal(t, string(apperr.CodePermissionDenied), p.Code)
	assert.Equal(t, models.EventJoin, p.Event)
	assert.Equal(t, uint(5), p.ConversationID)
	assert.Empty(t, hub.Members(chathub.ConversationGroup(5)))
}

func TestDispatcher_SendDelegatesToPipeline(t *testing.T) {
	ctx := context.Background()
	_, convs, d, c := setupDispatcher(t)
	convs.On("Send", ctx, uint(5), uint(1), "hello").Return(&models.Message{ID: 1}, nil).Once()

	d.Handle(ctx, c, event(t, models.EventSendMessage, models.SendMessagePayload{ConversationID: 5, Content: "hello"}))

	assert.Empty(t, c.drain(), "dispatcher never broadcasts on its own")
	convs.AssertExpectations(t)
}

func TestDispatcher_SendFailureIsScoped(t *testing.T) {
	ctx := context.Background()
	hub, convs, d, c := setupDispatcher(t)
	peer := newMockClient("peer", 2, 8)
	hub.Register(peer)
	hub.Join(peer, 5)
	convs.On("Send", ctx, uint(5), uint(1), "  ").Return(nil, apperr.InvalidArg("content must not be empty"))

	d.Handle(ctx, c, event(t, models.EventSendMessage, models.SendMessagePayload{ConversationID: 5, Content: "  "}))

	events := c.drain()
	require.Len(t, events, 1)
	assert.Equal(t, string(apperr.CodeInvalidArgument), errorPayload(t, events[0]).Code)
	assert.Empty(t, peer.drain())
}

func TestDispatcher_DeleteAndInternalErrors(t *testing.T) {
	ctx := context.Background()
	_, convs, d, c := setupDispatcher(t)
	convs.On("Delete", ctx, uint(5), uint(1), uint(9)).Return(nil, apperr.Internal("delete message", assert.AnError))

	d.Handle(ctx, c, event(t, models.EventDeleteMessage, models.DeleteMessagePayload{ConversationID: 5, MessageID: 9}))

	events := c.drain()
	require.Len(t, events, 1)
	p := errorPayload(t, events[0])
	assert.Equal(t, string(apperr.CodeInternal), p.Code)
	assert.Equal(t, "internal server error", p.Message)
}

func TestDispatcher_LeaveAndUnknown(t *testing.T) {
	ctx := context.Background()
	hub, _, d, c := setupDispatcher(t)
	hub.Join(c, 5)

	d.Handle(ctx, c, event(t, models.EventLeave, models.JoinPayload{ConversationID: 5}))
	d.Handle(ctx, c, models.Event{Type: "dance"})
	d.Handle(ctx, c, models.Event{Type: models.EventJoin, Data: []byte(`"oops"`)})

	events := c.drain()
	require.Len(t, events, 3)
	assert.Equal(t, models.EventLeft, events[0].Type)
	assert.Equal(t, string(apperr.CodeInvalidArgument), errorPayload(t, events[1]).Code)
	assert.Equal(t, string(apperr.CodeInvalidArgument), errorPayload(t, events[2]).Code)
	assert.Empty(t, hub.Members(chathub.ConversationGroup(5)))
}
