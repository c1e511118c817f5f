package router

import (
	"github.com/labstack/echo/v4"

	"chatapp/internal/adapter/api/handler"
	"chatapp/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()

	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)

	messages.POST("", chatHandler.SendMessage)                              // POST /v1/messages - Send message
	messages.GET("/:partnerId", chatHandler.GetMessages)                    // GET /v1/messages/:partnerId - Conversation history
	messages.PUT("/:partnerId/read", chatHandler.MarkConversationRead)      // PUT /v1/messages/:partnerId/read - Mark everything read
	messages.PUT("/:partnerId/:messageId/read", chatHandler.MarkMessageRead) // PUT /v1/messages/:partnerId/:messageId/read - Mark one read
	messages.PUT("/:partnerId/receipt", chatHandler.UpdateReadReceipt)      // PUT /v1/messages/:partnerId/receipt - Advance last-read
	messages.GET("/:partnerId/receipt", chatHandler.GetReadReceipt)         // GET /v1/messages/:partnerId/receipt - Both last-read ids

	recent := e.Group("/v1/recent-messages")
	recent.Use(authMiddleware.Authenticate)

	recent.GET("", chatHandler.GetRecentMessages) // GET /v1/recent-messages - Conversation list
}
