package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clipfeed/internal/api"
	"clipfeed/internal/auth"
	"clipfeed/internal/domain"
	"clipfeed/internal/inbox"
	"clipfeed/internal/session"
)

type InboxOpener interface {
	Open(ctx context.Context) ([]domain.Notification, error)
}

type BadgeCounter interface {
	Count() int
}

// InboxHandler expone el inbox y el contador de no vistas.
type InboxHandler struct {
	logger *zap.Logger
	inbox  InboxOpener
	badge  BadgeCounter
}

func NewInboxHandler(logger *zap.Logger, inboxSvc InboxOpener, badge BadgeCounter) *InboxHandler {
	return &InboxHandler{
		logger: logger,
		inbox:  inboxSvc,
		badge:  badge,
	}
}

// Open maneja GET /inbox.
func (h *InboxHandler) Open(c *gin.Context) {
	snap, ok := GetSessionSnapshot(c)
	if !ok || snap.Identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	items, err := h.inbox.Open(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, inbox.ErrNotReady):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session loading"})
		case errors.Is(err, session.ErrNotAuthenticated),
			errors.Is(err, auth.ErrSessionExpired),
			errors.Is(err, api.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		case errors.Is(err, api.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "api unavailable"})
		default:
			h.logger.Error("open inbox failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load notifications"})
		}
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{
		"username":      snap.Identity.User.Username,
		"notifications": items,
		"unseen":        domain.CountUnseen(items),
	})
}

// Badge maneja GET /inbox/badge.
func (h *InboxHandler) Badge(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unseen": h.badge.Count()})
}
