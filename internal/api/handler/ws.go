package handler

import (
	"errors"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// ServeWebSocket authenticates the handshake and upgrades it. A missing or
// invalid credential is refused with 401 before the upgrade.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	session := chathub.NewSession()
	session.Transition(chathub.StateAuthenticating)

	claims, err := h.auth.VerifyToken(auth.ExtractToken(c.Request))
	if err == nil {
		if _, lookupErr := h.store.GetUserByID(c.Request.Context(), claims.UserID); lookupErr != nil {
			err = lookupErr
			if errors.Is(lookupErr, storage.ErrNotFound) {
				err = apperr.Unauthenticated("unknown user")
			}
		}
	}
	if err != nil {
		session.Transition(chathub.StateRejected)
		h.respondError(c, err)
		return
	}
	session.Transition(chathub.StateAuthenticated)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", claims.UserID, "error", err)
		return
	}

	client := chathub.NewWebSocketClient(conn, claims.UserID, session, h.hub, h.dispatcher, h.chat, h.log)
	h.hub.Register(client)
	client.Run()
}
