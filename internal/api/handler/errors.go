package handler

import (
	"strconv"

	"pairchat/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

// respondError writes {"error": {"code", "message"}} with the code's status.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := apperr.As(err)
	if appErr.Code == apperr.CodeInternal {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(appErr.Code), gin.H{
		"error": gin.H{"code": appErr.Code, "message": appErr.PublicMessage()},
	})
}

func parseID(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.InvalidArg(name + " must be a positive integer")
	}
	return uint(v), nil
}
