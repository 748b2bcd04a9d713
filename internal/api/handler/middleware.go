package handler

import (
	"time"

	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "userID"

// RequireAuth verifies the bearer credential and stores the user id in the
// gin context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.auth.VerifyToken(auth.ExtractToken(c.Request))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
