package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/relationship"
	"pairchat/backend/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	hub *chathub.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	cfg := config.Default()
	store := storagetest.Store(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	hub := chathub.NewHub(nil, m, log)
	authSvc := auth.NewService(store, auth.NewTokenService("test-secret", time.Hour, "pairchat-test"), log)
	rel := relationship.NewService(store, hub, m, log)
	msgs := messaging.NewService(store, hub, m, log, cfg.Chat)

	h := NewHandler(authSvc, rel, msgs, hub, store, cfg.Chat, nil, log)
	srv := httptest.NewServer(NewRouter(h, nil, reg))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: hub}
}

type account struct {
	ID    uint
	Token string
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) signup(t *testing.T, name, email string) account {
	t.Helper()
	var out struct {
		User  models.UserSummary `json:"user"`
		Token string             `json:"token"`
	}
	status := s.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"name": name, "email": email, "password": "password1"}, &out)
	require.Equal(t, http.StatusCreated, status)
	return account{ID: out.User.ID, Token: out.Token}
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	ev, err := models.NewEvent(eventType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ev))
}

// readUntil skips events of other types, e.g. friendUpdate notices.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev models.Event
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", eventType)
		if ev.Type == eventType {
			return ev
		}
	}
}

func waitOnline(t *testing.T, hub *chathub.Hub, userID uint) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.IsOnline(userID) }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RejectsMissingOrInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	for _, url := range []string{base, base + "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestREST_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	var out struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	status := srv.do(t, http.MethodGet, "/api/conversations", "", nil, &out)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", out.Error.Code)
}

func TestFriendRequestErrors(t *testing.T) {
	srv := newTestServer(t)
	a := srv.signup(t, "Ann", "a@x.com")

	var out struct {
		Error struct{ Code string } `json:"error"`
	}
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodPost, "/api/friends/requests", a.Token, gin.H{"email": "ghost@x.com"}, &out))
	assert.Equal(t, "NOT_FOUND", out.Error.Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPost, "/api/friends/requests", a.Token, gin.H{"email": "a@x.com"}, &out))
	assert.Equal(t, "INVALID_OPERATION", out.Error.Code)

	var removed struct{ Success bool }
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, "/api/friends/999", a.Token, nil, &removed))
	assert.True(t, removed.Success)
}

// TestChatScenario runs request, accept, realtime send and removal end to end.
func TestChatScenario(t *testing.T) {
	srv := newTestServer(t)
	a := srv.signup(t, "Ann", "a@x.com")
	b := srv.signup(t, "Bob", "b@x.com")

	// A asks B.
	var created struct {
		OK      bool                 `json:"ok"`
		Request models.FriendRequest `json:"request"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/friends/requests", a.Token, gin.H{"email": "b@x.com"}, &created))
	require.True(t, created.OK)

	var lists models.RequestLists
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/friends/requests", b.Token, nil, &lists))
	require.Len(t, lists.Incoming, 1)
	assert.Equal(t, a.ID, lists.Incoming[0].User.ID)

	// B accepts.
	var accepted struct {
		OK             bool   `json:"ok"`
		Status         string `json:"status"`
		ConversationID *uint  `json:"conversationId"`
	}
	path := fmt.Sprintf("/api/friends/requests/%d/respond", lists.Incoming[0].ID)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, b.Token, gin.H{"action": "accept"}, &accepted))
	require.NotNil(t, accepted.ConversationID)
	assert.Equal(t, "accepted", accepted.Status)
	convID := *accepted.ConversationID

	var convs struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/conversations", a.Token, nil, &convs))
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, convID, convs.Conversations[0].ConversationID)
	assert.Equal(t, "Bob", convs.Conversations[0].OtherUserName)

	// Both connect and join.
	connA := srv.dial(t, a.Token)
	connB := srv.dial(t, b.Token)
	waitOnline(t, srv.hub, a.ID)
	waitOnline(t, srv.hub, b.ID)

	sendEvent(t, connB, models.EventJoin, models.JoinPayload{ConversationID: convID})
	readUntil(t, connB, models.EventJoined)
	sendEvent(t, connA, models.EventJoin, models.JoinPayload{ConversationID: convID})
	readUntil(t, connA, models.EventJoined)

	// A sends "hi" over the socket; B receives the persisted message.
	sendEvent(t, connA, models.EventSendMessage, models.SendMessagePayload{ConversationID: convID, Content: "hi"})
	var got models.Message
	require.NoError(t, readUntil(t, connB, models.EventMessage).Decode(&got))
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, a.ID, got.SenderID)
	assert.Equal(t, convID, got.ConversationID)
	assert.NotZero(t, got.ID)

	var echoed models.Message
	require.NoError(t, readUntil(t, connA, models.EventMessage).Decode(&echoed))
	assert.Equal(t, got.ID, echoed.ID, "sender's connection gets the same confirmed message")

	// The REST path produces the same shape.
	var restMsg models.Message
	msgPath := fmt.Sprintf("/api/conversations/%d/messages", convID)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, msgPath, b.Token, gin.H{"content": "hey"}, &restMsg))
	var broadcast models.Message
	require.NoError(t, readUntil(t, connA, models.EventMessage).Decode(&broadcast))
	assert.Equal(t, restMsg.ID, broadcast.ID)
	assert.True(t, restMsg.CreatedAt.Equal(broadcast.CreatedAt))

	var history struct {
		Messages []models.Message `json:"messages"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, msgPath+"?limit=10", b.Token, nil, &history))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "hey", history.Messages[0].Content, "newest first")

	// A deletes "hi"; B sees the tombstone event.
	var deleted struct {
		Success bool           `json:"success"`
		Message models.Message `json:"message"`
	}
	delPath := fmt.Sprintf("%s/%d", msgPath, got.ID)
	require.Equal(t, http.StatusForbidden, srv.do(t, http.MethodDelete, delPath, b.Token, nil, nil))
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, delPath, a.Token, nil, &deleted))
	assert.True(t, deleted.Message.Deleted)
	var del models.MessageDeletedPayload
	require.NoError(t, readUntil(t, connB, models.EventMessageDeleted).Decode(&del))
	assert.Equal(t, got.ID, del.MessageID)

	// An outsider cannot join.
	c := srv.signup(t, "Cid", "c@x.com")
	connC := srv.dial(t, c.Token)
	waitOnline(t, srv.hub, c.ID)
	sendEvent(t, connC, models.EventJoin, models.JoinPayload{ConversationID: convID})
	var joinErr models.ErrorPayload
	require.NoError(t, readUntil(t, connC, models.EventError).Decode(&joinErr))
	assert.Equal(t, "PERMISSION_DENIED", joinErr.Code)

	// A removes B: B's membership is revoked and history is gone.
	var removed struct{ Success bool }
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, fmt.Sprintf("/api/friends/%d", b.ID), a.Token, nil, &removed))
	assert.True(t, removed.Success)
	readUntil(t, connB, models.EventLeft)
	readUntil(t, connB, models.EventFriendUpdate)
	assert.Empty(t, srv.hub.Members(chathub.ConversationGroup(convID)))

	status := srv.do(t, http.MethodGet, msgPath, b.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, fmt.Sprintf("/api/friends/%d", b.ID), a.Token, nil, &removed))
	assert.True(t, removed.Success)
}
