package handler

import (
	"net/http"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type friendRequestInput struct {
	Email string `json:"email" binding:"required"`
}

type respondInput struct {
	Action models.Action `json:"action" binding:"required"`
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	var in friendRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, apperr.InvalidArg("email is required"))
		return
	}
	req, err := h.relationships.CreateOrRenewRequest(c.Request.Context(), currentUserID(c), in.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "request": req})
}

func (h *Handler) ListFriendRequests(c *gin.Context) {
	lists, err := h.relationships.ListRequests(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

func (h *Handler) RespondFriendRequest(c *gin.Context) {
	requestID, err := parseID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var in respondInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, apperr.InvalidArg("action must be accept or reject"))
		return
	}
	res, err := h.relationships.Respond(c.Request.Context(), currentUserID(c), requestID, in.Action)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": res.Status, "conversationId": res.ConversationID})
}

func (h *Handler) ListFriends(c *gin.Context) {
	friends, err := h.relationships.ListFriends(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *Handler) RemoveFriend(c *gin.Context) {
	otherID, err := parseID(c, "userId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.relationships.Remove(c.Request.Context(), currentUserID(c), otherID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
