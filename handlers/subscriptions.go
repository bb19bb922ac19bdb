package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/beatwatch/beatwatch/internal/beatmap"
	"github.com/beatwatch/beatwatch/internal/checker"
	"github.com/beatwatch/beatwatch/internal/subscription"
	"github.com/beatwatch/beatwatch/pkg/middleware"
)

// CheckRunner triggers one check cycle. Satisfied by the checker's Orchestrator.
type CheckRunner interface {
	RunCycle(ctx context.Context) error
}

// SubscriptionHandler exposes the command surface: manage subscriptions and
// force a check.
type SubscriptionHandler struct {
	svc    *subscription.Service
	checks CheckRunner
}

func NewSubscriptionHandler(svc *subscription.Service, checks CheckRunner) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, checks: checks}
}

// Register mounts the routes on an authenticated group. checkCooldown is the
// per-user rate limit applied to the force-check route only.
func (h *SubscriptionHandler) Register(rg *gin.RouterGroup, checkCooldown gin.HandlerFunc) {
	rg.GET("/attributes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"attributes": beatmap.Attributes()})
	})

	rg.POST("/subscriptions", func(c *gin.Context) {
		var req struct {
			Attribute string `json:"attribute" binding:"required"`
			Value     string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sub, err := h.svc.Add(c.Request.Context(), middleware.UserID(c), req.Attribute, req.Value)
		if err != nil {
			if errors.Is(err, subscription.ErrUnknownAttribute) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "attributes": beatmap.Attributes()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"attribute": sub.Attr, "value": sub.Value})
	})

	rg.GET("/subscriptions", func(c *gin.Context) {
		subs, err := h.svc.List(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(subs))
		for i, s := range subs {
			out = append(out, gin.H{"index": i, "attribute": s.Attr, "value": s.Value})
		}
		c.JSON(http.StatusOK, out)
	})

	rg.DELETE("/subscriptions/:index", func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}
		sub, err := h.svc.Remove(c.Request.Context(), middleware.UserID(c), index)
		if err != nil {
			if errors.Is(err, subscription.ErrIndexOutOfRange) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": gin.H{"attribute": sub.Attr, "value": sub.Value}})
	})

	rg.DELETE("/subscriptions", func(c *gin.Context) {
		if err := h.svc.RemoveAll(c.Request.Context(), middleware.UserID(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	rg.POST("/check", checkCooldown, func(c *gin.Context) {
		err := h.checks.RunCycle(c.Request.Context())
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"status": "completed"})
		case errors.Is(err, checker.ErrCheckInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "a check is already running"})
		case errors.Is(err, checker.ErrCycleTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		case errors.Is(err, beatmap.ErrUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	})
}
