package chathub

import (
	"context"
	"strconv"
	"sync"

	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"

	"github.com/google/uuid"
)

func UserGroup(userID uint) string {
	return config.UserGroupPrefix + strconv.FormatUint(uint64(userID), 10)
}

func ConversationGroup(conversationID uint) string {
	return config.ConversationGroupPrefix + strconv.FormatUint(uint64(conversationID), 10)
}

// Hub is the process-local multimap from broadcast group to live clients.
// With a Bus attached, publishes and evictions reach the hubs of every other
// instance too. Membership is never persisted.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client
	groups  map[string]map[string]Client
	joined  map[string]map[string]struct{}

	bus      Bus
	instance string
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewHub(bus Bus, m *metrics.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]Client),
		groups:   make(map[string]map[string]Client),
		joined:   make(map[string]map[string]struct{}),
		bus:      bus,
		instance: uuid.NewString(),
		metrics:  m,
		log:      log.With("component", "Hub"),
	}
}

// Run starts forwarding events published by other instances. Without a bus it
// returns immediately.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	return h.bus.StartForwarder(ctx, h.handleRemote)
}

func (h *Hub) handleRemote(env Envelope) {
	if env.Origin == h.instance {
		return
	}
	switch env.Kind {
	case KindEvent:
		h.deliver(env.Group, env.Event)
	case KindEvict:
		h.evict(env.Group, env.Event)
	default:
		h.log.Warn("unknown bus envelope", "kind", env.Kind)
	}
}

// Register admits an authenticated client and joins it to its user group.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.GetID()]; ok {
		return
	}
	h.clients[c.GetID()] = c
	h.addLocked(c, UserGroup(c.GetUserID()))
	h.metrics.ConnectionOpened()
	h.log.Debug("client registered", "client_id", c.GetID(), "user_id", c.GetUserID())
}

// Unregister drops every membership of c and closes it. Unknown clients are
// ignored, so it is safe to call more than once.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c Client) {
	id := c.GetID()
	if _, ok := h.clients[id]; !ok {
		return
	}
	for group := range h.joined[id] {
		h.removeLocked(id, group)
	}
	delete(h.joined, id)
	delete(h.clients, id)
	c.Close()
	h.metrics.ConnectionClosed()
	h.log.Debug("client unregistered", "client_id", id, "user_id", c.GetUserID())
}

func (h *Hub) addLocked(c Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]Client)
		h.groups[group] = members
	}
	members[c.GetID()] = c

	groups, ok := h.joined[c.GetID()]
	if !ok {
		groups = make(map[string]struct{})
		h.joined[c.GetID()] = groups
	}
	groups[group] = struct{}{}
}

func (h *Hub) removeLocked(clientID, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.joined[clientID]; ok {
		delete(groups, group)
	}
}

// Join adds a registered client to a conversation group. The caller has
// already authorized it.
func (h *Hub) Join(c Client, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.GetID()]; !ok {
		return
	}
	h.addLocked(c, ConversationGroup(conversationID))
}

func (h *Hub) Leave(c Client, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c.GetID(), ConversationGroup(conversationID))
}

// Publish delivers ev to every member of group on all instances.
func (h *Hub) Publish(ctx context.Context, group string, ev models.Event) {
	h.deliver(group, ev)
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(ctx, Envelope{Origin: h.instance, Kind: KindEvent, Group: group, Event: ev}); err != nil {
		h.log.Error("bus publish failed", "group", group, "error", err)
	}
}

// Send delivers ev to a single client, typically a reply or scoped error.
func (h *Hub) Send(c Client, ev models.Event) {
	h.mu.RLock()
	_, ok := h.clients[c.GetID()]
	delivered := !ok || trySend(c, ev)
	h.mu.RUnlock()

	if !delivered {
		h.dropSlow([]Client{c})
	}
}

func (h *Hub) deliver(group string, ev models.Event) {
	var slow []Client

	h.mu.RLock()
	for _, c := range h.groups[group] {
		if !trySend(c, ev) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.dropSlow(slow)
	}
}

func trySend(c Client, ev models.Event) bool {
	select {
	case c.GetSendChannel() <- ev:
		return true
	default:
		return false
	}
}

// dropSlow disconnects clients whose send buffer is full; they rejoin on
// reconnect.
func (h *Hub) dropSlow(clients []Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range clients {
		h.metrics.BroadcastDropped()
		h.log.Warn("client send buffer full, disconnecting", "client_id", c.GetID(), "user_id", c.GetUserID())
		h.unregisterLocked(c)
	}
}

// EvictGroup removes every member from group on all instances and sends each
// evicted client notice.
func (h *Hub) EvictGroup(ctx context.Context, group string, notice models.Event) {
	h.evict(group, notice)
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(ctx, Envelope{Origin: h.instance, Kind: KindEvict, Group: group, Event: notice}); err != nil {
		h.log.Error("bus evict failed", "group", group, "error", err)
	}
}

func (h *Hub) evict(group string, notice models.Event) {
	h.mu.Lock()
	members := h.groups[group]
	evicted := make([]Client, 0, len(members))
	for id, c := range members {
		evicted = append(evicted, c)
		if groups, ok := h.joined[id]; ok {
			delete(groups, group)
		}
	}
	delete(h.groups, group)
	h.mu.Unlock()

	for _, c := range evicted {
		h.Send(c, notice)
	}
}

// IsOnline reports whether the user has a live connection on this instance.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[UserGroup(userID)]) > 0
}

// BroadcastToConversation publishes ev to the conversation group.
func (h *Hub) BroadcastToConversation(ctx context.Context, conversationID uint, ev models.Event) {
	h.Publish(ctx, ConversationGroup(conversationID), ev)
}

// FriendUpdate tells each user's sessions to refetch their lists.
func (h *Hub) FriendUpdate(ctx context.Context, userIDs ...uint) {
	ev := models.Event{Type: models.EventFriendUpdate}
	for _, id := range userIDs {
		h.Publish(ctx, UserGroup(id), ev)
	}
}

// ConversationClosed revokes every membership of a removed conversation.
func (h *Hub) ConversationClosed(ctx context.Context, conversationID uint) {
	notice, err := models.NewEvent(models.EventLeft, models.JoinedPayload{ConversationID: conversationID})
	if err != nil {
		h.log.Error("encode left event", "error", err)
		return
	}
	h.EvictGroup(ctx, ConversationGroup(conversationID), notice)
}

// Members returns the client ids currently in group on this instance.
func (h *Hub) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		out = append(out, id)
	}
	return out
}
