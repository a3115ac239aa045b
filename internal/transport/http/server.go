package http

import (
	"github.com/gin-gonic/gin"

	"legalchat/internal/bootstrap"
	"legalchat/internal/transport/http/handler"
	"legalchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.AuthService)
	chatHandler := handler.NewChatHandler(app.ChatService)
	conversationHandler := handler.NewConversationHandler(app.ChatService)
	documentHandler := handler.NewDocumentHandler(app.DocumentService)

	authRequired := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authRequired, authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authRequired)
	chatGroup.POST("/stream", chatHandler.StreamMessage)
	chatGroup.POST("/title", chatHandler.GenerateTitle)

	convGroup := v1.Group("/conversations")
	convGroup.Use(authRequired)
	convGroup.POST("", conversationHandler.Create)
	convGroup.GET("", conversationHandler.List)
	convGroup.DELETE("", conversationHandler.ClearAll)
	convGroup.GET("/:id/messages", conversationHandler.Messages)
	convGroup.PUT("/:id/title", conversationHandler.Rename)
	convGroup.DELETE("/:id", conversationHandler.Delete)
	convGroup.POST("/:id/restore", conversationHandler.Restore)
	convGroup.PUT("/:id/draft", conversationHandler.SaveDraft)
	convGroup.GET("/:id/draft", conversationHandler.GetDraft)

	docGroup := v1.Group("/documents")
	docGroup.Use(authRequired)
	docGroup.POST("", documentHandler.Upload)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id", documentHandler.Get)

	return router
}
