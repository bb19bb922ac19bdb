package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beatwatch/beatwatch/pkg/middleware"
)

// Messenger sends a plain text message to a user. Satisfied by the Discord sink.
type Messenger interface {
	SendText(ctx context.Context, userID, text string) error
}

// AdminHandler exposes owner-only commands.
type AdminHandler struct {
	ownerID string
	msgs    Messenger
}

func NewAdminHandler(ownerID string, msgs Messenger) *AdminHandler {
	return &AdminHandler{ownerID: ownerID, msgs: msgs}
}

func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/admin/message", func(c *gin.Context) {
		if h.ownerID == "" || middleware.UserID(c) != h.ownerID {
			c.JSON(http.StatusForbidden, gin.H{"error": "owner only"})
			return
		}
		var req struct {
			User string `json:"user" binding:"required"`
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.msgs.SendText(c.Request.Context(), req.User, req.Text); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	})
}
