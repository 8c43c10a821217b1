package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clipfeed/internal/domain"
	"clipfeed/internal/session"
)

const sessionSnapshotKey = "session_snapshot"

// RequireSession deja pasar solo con una sesión autenticada y estable.
// Mientras la sesión carga responde 503 para que el cliente reintente.
func RequireSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session store not configured"})
			c.Abort()
			return
		}

		snap := store.Snapshot()
		if snap.Loading || snap.State() == domain.StateUnknown {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session loading"})
			c.Abort()
			return
		}
		if snap.State() != domain.StateAuthenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			c.Abort()
			return
		}

		c.Set(sessionSnapshotKey, snap)
		c.Next()
	}
}

// GetSessionSnapshot obtiene el snapshot que dejó RequireSession.
func GetSessionSnapshot(c *gin.Context) (domain.Snapshot, bool) {
	val, ok := c.Get(sessionSnapshotKey)
	if !ok {
		return domain.Snapshot{}, false
	}
	snap, ok := val.(domain.Snapshot)
	return snap, ok
}
