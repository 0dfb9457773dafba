package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"zawj-chat/internal/api/handlers"
	"zawj-chat/internal/api/middleware"
	"zawj-chat/internal/services"
	"zawj-chat/internal/websocket"
)

// Services groups what the handlers call into.
type Services struct {
	Users         *services.UserService
	Conversations *services.ConversationService
	Connections   *services.ConnectionService
	Blocks        *services.BlockService
	Attachments   *services.AttachmentService
	Reports       *services.ReportService
}

type Router struct {
	engine              *gin.Engine
	wsHandler           *handlers.WSHandler
	userHandler         *handlers.UserHandler
	authHandler         *handlers.AuthHandler
	conversationHandler *handlers.ConversationHandler
	connectionHandler   *handlers.ConnectionHandler
	attachmentHandler   *handlers.AttachmentHandler
	rateLimitMW         *middleware.RateLimitMiddleware
	authMW              *middleware.AuthMiddleware
	health              func() error
}

// NewRouter wires the handlers. limiter and health may be nil.
func NewRouter(
	hub *websocket.Hub,
	svc Services,
	limiter middleware.Limiter,
	jwtSecret string,
	allowedOrigins []string,
	health func() error,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(allowedOrigins))
	engine.Use(middleware.LogApi("/healthz", "/metrics"))

	return &Router{
		engine:              engine,
		wsHandler:           handlers.NewWSHandler(hub),
		userHandler:         handlers.NewUserHandler(svc.Users, svc.Blocks, svc.Reports),
		authHandler:         handlers.NewAuthHandler(svc.Users),
		conversationHandler: handlers.NewConversationHandler(svc.Conversations),
		connectionHandler:   handlers.NewConnectionHandler(svc.Connections),
		attachmentHandler:   handlers.NewAttachmentHandler(svc.Attachments),
		rateLimitMW:         middleware.NewRateLimitMiddleware(limiter),
		authMW:              middleware.NewAuthMiddleware(jwtSecret),
		health:              health,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.healthCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	// Public routes (no authentication required)
	authRoutes := api.Group("/auth")
	authRoutes.Use(r.rateLimitMW.RateLimitIP(50, time.Minute)) // 50 requests per minute per IP
	{
		authRoutes.POST("/register", r.authHandler.Register)
		authRoutes.POST("/login", r.authHandler.Login)
	}

	// Authenticated routes
	auth := api.Group("")
	auth.Use(r.authMW.RequireAuth())
	{
		auth.GET("/ws",
			r.rateLimitMW.WebSocketRateLimit(10, time.Minute), // 10 handshakes per minute
			r.wsHandler.HandleWebSocket,
		)

		users := auth.Group("/users")
		users.Use(r.rateLimitMW.RateLimit(100, time.Minute))
		{
			users.GET("", r.userHandler.ListUsers)
			users.GET("/profile", r.userHandler.GetProfile)
			users.PUT("/profile", r.userHandler.UpdateProfile)
			users.GET("/blocked", r.userHandler.ListBlocked)
			users.POST("/:id/block", r.userHandler.BlockUser)
			users.DELETE("/:id/block", r.userHandler.UnblockUser)
			users.GET("/:id", r.userHandler.GetUser)
			users.POST("/:id/report", r.userHandler.ReportUser)
		}

		conversations := auth.Group("/conversations")
		conversations.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			conversations.GET("", r.conversationHandler.ListConversations)
			conversations.POST("", r.conversationHandler.CreateConversation)
			conversations.GET("/:id", r.conversationHandler.GetConversation)
			conversations.GET("/:id/messages", r.conversationHandler.GetMessages)
		}

		connections := auth.Group("/connections")
		connections.Use(r.rateLimitMW.RateLimit(100, time.Minute))
		{
			connections.GET("", r.connectionHandler.ListConnections)
			connections.GET("/:peerId", r.connectionHandler.GetConnection)
			connections.POST("/:peerId/request", r.connectionHandler.RequestConnection)
			connections.POST("/:peerId/accept", r.connectionHandler.AcceptConnection)
			connections.POST("/:peerId/decline", r.connectionHandler.DeclineConnection)
			connections.POST("/:peerId/block", r.connectionHandler.BlockConnection)
		}

		messages := auth.Group("/messages")
		messages.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			messages.GET("/:id/attachment", r.attachmentHandler.GetAttachment)
		}
	}
}

func (r *Router) healthCheck(c *gin.Context) {
	if r.health != nil {
		if err := r.health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
