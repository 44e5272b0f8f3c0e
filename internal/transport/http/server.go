package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"companion-ai/internal/bootstrap"
	"companion-ai/internal/transport/http/handler"
	"companion-ai/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	if app.Config.App.GinMode != "" {
		gin.SetMode(app.Config.App.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(app.Logger))
	if app.Metrics != nil {
		router.Use(middleware.Metrics(app.Metrics))
	}

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, app.HealthChecks())
	router.GET("/healthz", healthHandler.Check)
	if app.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
	}

	authHandler := handler.NewAuthHandler(app.Auth, app.Chat)
	chatHandler := handler.NewChatHandler(app.Chat, app.Config.Session.MaxUploadBytes)
	eventsHandler := handler.NewEventsHandler(app.Chat, app.Bus)
	requireAuth := middleware.AuthJWT(app.Auth)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(requireAuth)
	chatGroup.GET("/state", chatHandler.GetState)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.POST("/attachments", chatHandler.UploadAttachment)
	chatGroup.DELETE("/attachments", chatHandler.DetachAttachment)
	chatGroup.GET("/events", eventsHandler.Stream)

	return router
}
