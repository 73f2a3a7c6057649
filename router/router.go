package router

import (
	"context"
	"net/http"
	"time"

	"sms-support-server/internal/config"
	"sms-support-server/internal/handlers"
	"sms-support-server/pkg/logger"
	"sms-support-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Handlers are the endpoint implementations the router mounts
type Handlers struct {
	Auth      *handlers.AuthHandler
	Messages  *handlers.MessageHandler
	Customers *handlers.CustomerHandler
	Webhooks  *handlers.WebhookHandler
	Realtime  http.Handler

	// Ping reports whether storage is reachable. Optional.
	Ping func(ctx context.Context) error
}

// Router owns the gin engine and the route table
type Router struct {
	engine   *gin.Engine
	handlers Handlers
	version  string
}

// NewRouter builds the route table. Every handler in h is required except Ping.
func NewRouter(cfg *config.Config, h Handlers, version string) *Router {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if h.Auth == nil || h.Messages == nil || h.Customers == nil || h.Webhooks == nil || h.Realtime == nil {
		panic("all handlers are required")
	}

	r := &Router{
		engine:   gin.New(),
		handlers: h,
		version:  version,
	}

	r.engine.HandleMethodNotAllowed = true
	r.engine.Use(gin.Recovery())
	if cfg.Server.ForceHTTPS {
		r.engine.Use(middleware.HTTPSRedirectMiddleware("/health"))
	}
	r.engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.AuditLogMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.CORSMiddleware(cfg.Server.AllowedOrigins),
	)
	if cfg.Server.MaxBodyBytes > 0 {
		r.engine.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxBodyBytes))
	}

	r.engine.NoRoute(r.handleNotFound)
	r.engine.NoMethod(r.handleMethodNotAllowed)

	r.engine.GET("/health", r.handleHealth)
	r.engine.GET("/ws", gin.WrapH(h.Realtime))

	api := r.engine.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
	}

	webhookGroup := api.Group("/webhooks/carrier")
	webhookGroup.Use(middleware.RateLimitByIP(middleware.NewIPRateLimiter(cfg.Webhook.RatePerSecond, cfg.Webhook.Burst)))
	if cfg.Webhook.ValidateSignature {
		webhookGroup.Use(middleware.WebhookSignatureMiddleware(cfg.Carrier.AuthToken, cfg.Webhook.PublicURL))
	}
	{
		webhookGroup.POST("/incoming", h.Webhooks.Incoming)
		webhookGroup.POST("/status", h.Webhooks.Status)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(cfg))

	messageGroup := protected.Group("/messages")
	{
		messageGroup.POST("/send", h.Messages.Send)
		messageGroup.GET("/conversations", h.Messages.ListConversations)
		messageGroup.POST("/conversations", h.Messages.StartConversation)
		messageGroup.GET("/conversations/:id", h.Messages.GetConversation)
		messageGroup.PUT("/conversations/:id", h.Messages.UpdateConversation)
		messageGroup.GET("/conversations/:id/messages", h.Messages.ListMessages)
		messageGroup.GET("/:id", h.Messages.GetMessage)
	}

	customerGroup := protected.Group("/customers")
	{
		customerGroup.POST("", h.Customers.Create)
		customerGroup.GET("", h.Customers.List)
		customerGroup.GET("/:id", h.Customers.Get)
		customerGroup.PUT("/:id", h.Customers.Update)
		customerGroup.DELETE("/:id", middleware.RequireRole(middleware.RoleAdmin), h.Customers.Delete)
	}

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *Router) handleHealth(c *gin.Context) {
	status := http.StatusOK
	state := "ok"
	if r.handlers.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.handlers.Ping(ctx); err != nil {
			logger.Error("Health check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":  state,
		"time":    time.Now().UTC(),
		"version": r.version,
		"service": "sms-support-server",
	})
}

func (r *Router) handleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success":    false,
		"error":      "Not found",
		"statusCode": http.StatusNotFound,
	})
}

func (r *Router) handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"success":    false,
		"error":      "Method not allowed",
		"statusCode": http.StatusMethodNotAllowed,
	})
}
