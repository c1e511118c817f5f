package router

import (
	"github.com/labstack/echo/v4"

	"chatapp/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, registerLimiter *middleware.IPRateLimiter) {
	SetupAuthRouter(e, authMiddleware, registerLimiter)
	SetupUserRouter(e, authMiddleware)
	SetupChatRouter(e, authMiddleware)
	SetupHealthRouter(e)
}
