package handler

import (
	"net/http"
	"strconv"

	"pairchat/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

type sendMessageInput struct {
	Content string `json:"content"`
}

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.relationships.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// FetchMessages returns the most recent messages newest first.
func (h *Handler) FetchMessages(c *gin.Context) {
	convID, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			h.respondError(c, apperr.InvalidArg("limit must be an integer"))
			return
		}
	}
	msgs, err := h.messages.Fetch(c.Request.Context(), convID, currentUserID(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage is the REST path into the same pipeline as the sendMessage
// event; the response body equals the broadcast payload.
func (h *Handler) SendMessage(c *gin.Context) {
	convID, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var in sendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, apperr.InvalidArg("content is required"))
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), convID, currentUserID(c), in.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	convID, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	msgID, err := parseID(c, "messageId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	msg, err := h.messages.Delete(c.Request.Context(), convID, currentUserID(c), msgID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
