package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	id         string
	userID     uint
	conn       *websocket.Conn
	hub        *Hub
	dispatcher *Dispatcher
	session    *Session
	limiter    *rate.Limiter
	send       chan models.Event
	log        *logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection of an authenticated user.
func NewWebSocketClient(conn *websocket.Conn, userID uint, session *Session, hub *Hub, dispatcher *Dispatcher, cfg config.Chat, log *logger.Logger) *WebSocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &WebSocketClient{
		id:         id,
		userID:     userID,
		conn:       conn,
		hub:        hub,
		dispatcher: dispatcher,
		session:    session,
		limiter:    rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		send:       make(chan models.Event, config.ClientSendBuffer),
		log:        log.With("client_id", id, "user_id", userID),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *WebSocketClient) GetID() string                        { return c.id }
func (c *WebSocketClient) GetUserID() uint                      { return c.userID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.send }

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.session.Transition(StateDisconnected)
		close(c.send)
	})
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			c.dispatcher.Error(c, "", 0, apperr.InvalidArg("malformed event"))
			continue
		}
		if !c.limiter.Allow() {
			c.dispatcher.Error(c, ev.Type, 0, apperr.RateLimited("too many events, slow down"))
			continue
		}
		c.dispatcher.Handle(c.ctx, c, ev)
	}
}

// writePump writes each event as its own text frame.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
