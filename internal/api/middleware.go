package api

import (
	"net/http"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/auth"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// Router wires every route onto a fresh gin engine.
func Router(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger), cors())

	r.GET("/health", h.Health)
	r.POST("/demo-login", h.DemoLogin)

	protected := r.Group("/", h.authenticate)
	protected.POST("/inference", h.HandleInference)
	protected.GET("/analytics", h.GetAnalytics)
	protected.POST("/analytics/clear", h.ClearAnalytics)
	protected.GET("/dashboard-widgets", h.DashboardWidgets)
	protected.GET("/usage-stats", h.UsageStats)
	protected.POST("/upload-file", h.UploadFile)

	protected.GET("/conversations", h.GetConversations)
	protected.POST("/conversations", h.CreateConversation)
	protected.GET("/conversations/:id/messages", h.GetMessages)
	protected.DELETE("/conversations/:id", h.DeleteConversation)
	protected.PUT("/conversations/:id/title", h.UpdateConversation)
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authenticate attaches verified claims when a bearer token is present. A
// bad token is always rejected; a missing one only when auth is required.
func (h *Handler) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if h.authRequired {
			h.fail(c, apperr.New(apperr.KindUnauthenticated, "Authorization required"))
			return
		}
		c.Next()
		return
	}
	token, ok := auth.BearerToken(header)
	if !ok {
		h.fail(c, apperr.New(apperr.KindUnauthenticated, "Invalid authorization header"))
		return
	}
	claims, err := h.issuer.Verify(token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(identityKey, claims)
	c.Next()
}

func identity(c *gin.Context) *auth.Claims {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// caller resolves who a request acts for. Token claims override whatever
// the client sent.
func caller(c *gin.Context, role string, userID int64) (models.Role, int64) {
	if claims := identity(c); claims != nil {
		return claims.Role, claims.CanvasUserID
	}
	return models.ParseRole(role), userID
}
