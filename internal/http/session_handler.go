package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clipfeed/internal/api"
	"clipfeed/internal/domain"
	"clipfeed/internal/session"
)

// Authenticator son los flujos de login que expone el agente.
type Authenticator interface {
	SignIn(ctx context.Context, username, password string) (domain.Identity, error)
	SignUp(ctx context.Context, username, email, password string) (domain.Identity, error)
	SignOut(ctx context.Context)
}

// SessionHandler mantiene dependencias para endpoints de sesión.
type SessionHandler struct {
	logger *zap.Logger
	store  *session.Store
	auth   Authenticator
}

// NewSessionHandler crea una instancia de SessionHandler con dependencias necesarias.
func NewSessionHandler(logger *zap.Logger, store *session.Store, auth Authenticator) *SessionHandler {
	return &SessionHandler{
		logger: logger,
		store:  store,
		auth:   auth,
	}
}

type sessionResponse struct {
	State             string       `json:"state"`
	Loading           bool         `json:"loading"`
	NotificationsSeen bool         `json:"notifications_seen"`
	User              *domain.User `json:"user,omitempty"`
}

func toSessionResponse(snap domain.Snapshot) sessionResponse {
	resp := sessionResponse{
		State:             snap.State().String(),
		Loading:           snap.Loading,
		NotificationsSeen: snap.NotificationsSeen,
	}
	if snap.Identity != nil {
		u := snap.Identity.User
		resp.User = &u
	}
	return resp
}

// Health maneja GET /healthz.
func (h *SessionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": h.store.State().String()})
}

// GetSession maneja GET /session. Nunca devuelve los tokens.
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// Login maneja POST /session/login.
func (h *SessionHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if _, err := h.auth.SignIn(c.Request.Context(), req.Username, req.Password); err != nil {
		h.writeAuthError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// SignUp maneja POST /session/signup.
func (h *SessionHandler) SignUp(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if _, err := h.auth.SignUp(c.Request.Context(), req.Username, req.Email, req.Password); err != nil {
		h.writeAuthError(c, "signup", err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(h.store.Snapshot()))
}

// Logout maneja POST /session/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.auth.SignOut(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// SetLoading maneja PUT /session/loading.
func (h *SessionHandler) SetLoading(c *gin.Context) {
	var req struct {
		Loading *bool `json:"loading" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.store.SetLoading(*req.Loading)
	c.JSON(http.StatusOK, toSessionResponse(h.store.Snapshot()))
}

// MarkNotificationsSeen maneja POST /notifications/seen.
func (h *SessionHandler) MarkNotificationsSeen(c *gin.Context) {
	h.store.MarkNotificationsSeen()
	c.JSON(http.StatusOK, gin.H{"notifications_seen": h.store.NotificationsSeen()})
}

// ResetNotificationsSeen maneja DELETE /notifications/seen.
func (h *SessionHandler) ResetNotificationsSeen(c *gin.Context) {
	h.store.ResetNotificationsSeen()
	c.JSON(http.StatusOK, gin.H{"notifications_seen": h.store.NotificationsSeen()})
}

func (h *SessionHandler) writeAuthError(c *gin.Context, op string, err error) {
	var fieldErr *api.FieldError
	switch {
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields", "fields": fieldErr.Fields})
	case errors.Is(err, api.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, api.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": op + " rejected"})
	case errors.Is(err, api.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "api unavailable"})
	case errors.Is(err, session.ErrInvalidIdentity):
		h.logger.Error("server returned an unusable identity", zap.String("op", op))
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid identity from api"})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not " + op})
	}
}
