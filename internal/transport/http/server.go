package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"lawchat/internal/app"
	"lawchat/internal/config"
	"lawchat/internal/transport/http/handler"
	"lawchat/internal/transport/http/middleware"
)

type Dependencies struct {
	Config   *config.Config
	Registry *app.Registry
	Admin    middleware.AdminFactory
	Health   *handler.HealthHandler
	Logger   *slog.Logger
}

func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(deps.Logger), gin.Recovery())

	router.GET("/healthz", deps.Health.Check)

	chatHandler := handler.NewChatHandler()
	authHandler := handler.NewAuthHandler()
	settingsHandler := handler.NewSettingsHandler()
	adminHandler := handler.NewAdminHandler()

	v1 := router.Group("/api/v1")
	v1.GET("/config", deps.Health.Config)

	client := v1.Group("")
	client.Use(middleware.ClientIdentity(deps.Registry, cfg.Auth.CookieName, cfg.Auth.CookieMaxAgeDays))

	chatGroup := client.Group("/chat")
	chatGroup.GET("", chatHandler.Snapshot)
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.POST("/reset", chatHandler.Reset)
	chatGroup.PUT("/draft", chatHandler.SetDraft)
	chatGroup.GET("/history", chatHandler.History)
	chatGroup.GET("/history/download", chatHandler.DownloadHistory)
	chatGroup.PUT("/messages/:index/label", chatHandler.SetLabel)
	chatGroup.PUT("/messages/:index/comment", chatHandler.SetComment)
	chatGroup.POST("/messages/:index/feedback", chatHandler.SubmitFeedback)

	authGroup := client.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", authHandler.Me)

	settingsGroup := client.Group("/settings")
	settingsGroup.GET("/models", settingsHandler.Get)
	settingsGroup.PUT("/models/selected", settingsHandler.SelectModel)
	settingsGroup.PUT("/models/compare", settingsHandler.SelectCompareModels)

	adminGroup := client.Group("/admin")
	adminGroup.Use(middleware.AdminAuth(deps.Admin, cfg.Client.PageSize, cfg.Gateway.BulkConcurrency))
	adminGroup.GET("/sessions", adminHandler.ListSessions)
	adminGroup.POST("/sessions/delete", adminHandler.DeleteSessions)
	adminGroup.GET("/sessions/:sid", adminHandler.GetSession)
	adminGroup.DELETE("/sessions/:sid", adminHandler.DeleteSession)
	adminGroup.GET("/export", adminHandler.Export)
	adminGroup.GET("/overrides", adminHandler.ListOverrides)
	adminGroup.POST("/overrides", adminHandler.CreateOverride)
	adminGroup.PATCH("/overrides/:id", adminHandler.UpdateOverride)
	adminGroup.DELETE("/overrides/:id", adminHandler.DeleteOverride)
	adminGroup.POST("/compare", adminHandler.CompareModels)
	adminGroup.GET("/users", adminHandler.ListUsers)
	adminGroup.POST("/users", adminHandler.CreateUser)
	adminGroup.PATCH("/users/:username", adminHandler.UpdateUser)
	adminGroup.DELETE("/users/:username", adminHandler.DeleteUser)

	return router
}
