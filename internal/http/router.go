package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin del agente de sesión.
func NewRouter(
	logger *zap.Logger,
	sessionH *SessionHandler,
	inboxH *InboxHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", sessionH.Health)

	sess := r.Group("/session")
	sess.GET("", sessionH.GetSession)
	sess.POST("/login", sessionH.Login)
	sess.POST("/signup", sessionH.SignUp)
	sess.POST("/logout", sessionH.Logout)
	sess.PUT("/loading", sessionH.SetLoading)

	notifications := r.Group("/notifications")
	notifications.POST("/seen", sessionH.MarkNotificationsSeen)
	notifications.DELETE("/seen", sessionH.ResetNotificationsSeen)

	inbox := r.Group("/inbox", RequireSession(sessionH.store))
	inbox.GET("", inboxH.Open)
	inbox.GET("/badge", inboxH.Badge)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
