package handler

import (
	"errors"
	"net/http"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type telegramLinkRequest struct {
	ChatID *int64 `json:"chatId"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.InvalidArg("name, email and password are required"))
		return
	}
	user, token, err := h.auth.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user.Summary(), "token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.InvalidArg("email and password are required"))
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Summary(), "token": token})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.store.GetUserByID(c.Request.Context(), currentUserID(c))
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(c, apperr.NotFound("user not found"))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Summary(), "telegramLinked": user.TelegramChatID != nil})
}

// LinkTelegram sets or, with a null chatId, clears the chat used for offline
// alerts.
func (h *Handler) LinkTelegram(c *gin.Context) {
	var req telegramLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.InvalidArg("chatId must be an integer or null"))
		return
	}
	err := h.store.SetTelegramChatID(c.Request.Context(), currentUserID(c), req.ChatID)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(c, apperr.NotFound("user not found"))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
