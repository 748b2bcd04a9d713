package chathub_test

import (
	"context"
	"sync"
	"testing"

	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryBus connects hubs in the same process.
type memoryBus struct {
	mu        sync.Mutex
	listeners []func(chathub.Envelope)
}

func (b *memoryBus) Publish(_ context.Context, env chathub.Envelope) error {
	b.mu.Lock()
	listeners := append([]func(chathub.Envelope){}, b.listeners...)
	b.mu.Unlock()
	for _, l := range listeners {
		l(env)
	}
	return nil
}

func (b *memoryBus) StartForwarder(_ context.Context, onMsg func(chathub.Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, onMsg)
	return nil
}

func (b *memoryBus) Close() error { return nil }

func TestHub_RegisterJoinsUserGroup(t *testing.T) {
	hub := chathub.NewHub(nil, nil, logger.Nop())
	c := newMockClient("c1", 7, 4)

	hub.Register(c)

	assert.True(t, hub.IsOnline(7))
	assert.False(t, hub.IsOnline(8))
	assert.Equal(t, []string{"c1"}, hub.Members(chathub.UserGroup(7)))

	hub.FriendUpdate(context.Background(), 7)
	events := c.drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventFriendUpdate, events[0].Type)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := chathub.NewHub(nil, nil, logger.Nop())
	c := newMockClient("c1", 7, 4)
	hub.Register(c)
	hub.Join(c, 3)

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 1, c.closeCount())
	assert.False(t, hub.IsOnline(7))
	assert.Empty(t, hub.Members(chathub.ConversationGroup(3)))
}

func TestHub_BroadcastReachesOnlyGroupMembers(t *testing.T) {
	ctx := context.Background()
	hub := chathub.NewHub(nil, nil, logger.Nop())
	a1 := newMockClient("a1", 1, 4)
	a2 := newMockClient("a2", 1, 4)
	b := newMockClient("b", 2, 4)
	outsider := newMockClient("x", 3, 4)
	for _, c := range []*MockClient{a1, a2, b, outsider} {
		hub.Register(c)
	}
	hub.Join(a1, 10)
	hub.Join(a2, 10)
	hub.Join(b, 10)

	ev, err := models.NewEvent(models.EventMessage, models.Message{ID: 1, ConversationID: 10, SenderID: 1, Content: "hi"})
	require.NoError(t, err)
	hub.BroadcastToConversation(ctx, 10, ev)

	assert.Len(t, a1.drain(), 1, "sender's own connections receive the broadcast")
	assert.Len(t, a2.drain(), 1)
	assert.Len(t, b.drain(), 1)
	assert.Empty(t, outsider.drain())

	hub.Leave(b, 10)
	hub.BroadcastToConversation(ctx, 10, ev)
	assert.Empty(t, b.drain())
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := chathub.NewHub(nil, nil, logger.Nop())
	slow := newMockClient("slow", 1, 1)
	fast := newMockClient("fast", 2, 8)
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, 5)
	hub.Join(fast, 5)

	ev := models.Event{Type: models.EventMessage}
	hub.BroadcastToConversation(context.Background(), 5, ev)
	hub.BroadcastToConversation(context.Background(), 5, ev)

	assert.Equal(t, 1, slow.closeCount())
	assert.False(t, hub.IsOnline(1))
	assert.Len(t, fast.drain(), 2)
}

func TestHub_ConversationClosedEvictsMembers(t *testing.T) {
	ctx := context.Background()
	hub := chathub.NewHub(nil, nil, logger.Nop())
	a := newMockClient("a", 1, 4)
	b := newMockClient("b", 2, 4)
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, 9)
	hub.Join(b, 9)

	hub.ConversationClosed(ctx, 9)

	assert.Empty(t, hub.Members(chathub.ConversationGroup(9)))
	events := b.drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventLeft, events[0].Type)

	require.Len(t, a.drain(), 1)
	hub.BroadcastToConversation(ctx, 9, models.Event{Type: models.EventMessage})
	assert.Empty(t, a.drain(), "no delivery after eviction")
	assert.True(t, hub.IsOnline(1), "user group membership survives")
}

func TestHub_BusFansOutAcrossInstances(t *testing.T) {
	ctx := context.Background()
	bus := &memoryBus{}
	hubA := chathub.NewHub(bus, nil, logger.Nop())
	hubB := chathub.NewHub(bus, nil, logger.Nop())
	require.NoError(t, hubA.Run(ctx))
	require.NoError(t, hubB.Run(ctx))

	onA := newMockClient("onA", 1, 4)
	onB := newMockClient("onB", 2, 4)
	hubA.Register(onA)
	hubB.Register(onB)
	hubA.Join(onA, 4)
	hubB.Join(onB, 4)

	hubA.BroadcastToConversation(ctx, 4, models.Event{Type: models.EventMessage})

	assert.Len(t, onA.drain(), 1, "origin hub delivers once")
	assert.Len(t, onB.drain(), 1)

	hubA.ConversationClosed(ctx, 4)
	assert.Empty(t, hubB.Members(chathub.ConversationGroup(4)))
	events := onB.drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventLeft, events[0].Type)
}

func TestSession_Transitions(t *testing.T) {
	s := chathub.NewSession()
	assert.Equal(t, chathub.StateConnecting, s.State())

	assert.False(t, s.Transition(chathub.StateAuthenticated), "must authenticate first")
	assert.True(t, s.Transition(chathub.StateAuthenticating))
	assert.True(t, s.Transition(chathub.StateAuthenticated))
	assert.True(t, s.Transition(chathub.StateDisconnected))
	assert.False(t, s.Transition(chathub.StateAuthenticated), "disconnected is terminal")
	assert.Equal(t, "disconnected", s.State().String())

	rejected := chathub.NewSession()
	rejected.Transition(chathub.StateAuthenticating)
	assert.True(t, rejected.Transition(chathub.StateRejected))
	assert.False(t, rejected.Transition(chathub.StateAuthenticated))
}
