package router

import (
	"github.com/labstack/echo/v4"

	"chatapp/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes. No auth middleware here:
// the handler authenticates from the header or token query parameter itself.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/v1/ws", wsHandler.HandleWebSocket)
	e.GET("/v1/ws/conversations/:partnerId", wsHandler.HandleConversationStream)
}
