package router

import (
	"github.com/labstack/echo/v4"

	"chatapp/internal/adapter/api/handler"
	"chatapp/internal/adapter/api/middleware"
)

func SetupAuthRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, registerLimiter *middleware.IPRateLimiter) {
	authHandler := handler.GetAuthHandler()

	// Public routes
	e.POST("/v1/auth/register", authHandler.Register, registerLimiter.Middleware())

	// Protected routes
	protected := e.Group("/v1/auth")
	protected.Use(authMiddleware.Authenticate)

	protected.POST("/sync", authHandler.SyncProfile)
}
