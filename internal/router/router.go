// Package router wires the HTTP surface.  Route registration is kept in
// one place so the middleware chains are visible at a glance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/config"
	"github.com/iliyamo/book-garden-api/internal/handler"
	"github.com/iliyamo/book-garden-api/internal/middleware"
)

// Register mounts all routes on e.  The unauthenticated auth endpoints go
// through the Redis token bucket; everything behind a bearer token goes
// through JWTAuth.
func Register(
	e *echo.Echo,
	tokens *auth.TokenService,
	authH *handler.AuthHandler,
	gardenH *handler.GardenHandler,
	pushH *handler.PushHandler,
	rlCfg config.RateLimitConfig,
	rdb *redis.Client,
) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/healthz", handler.Health)

	limited := middleware.NewTokenBucket(rlCfg, rdb)
	protected := middleware.JWTAuth(tokens)

	v1 := e.Group("/v1")

	// Anonymous surface: signup/login/refresh plus the reset-code flow, all
	// behind the token bucket.
	v1.POST("/auth", authH.Signup, limited)
	v1.POST("/auth/login", authH.Login, limited)
	v1.POST("/auth/refresh", authH.Refresh, limited)
	v1.POST("/auth/find-password", authH.FindPassword, limited)
	v1.POST("/auth/find-password/check", authH.CheckCode, limited)
	v1.PUT("/auth/find-password/update-password", authH.ResetPassword, limited)

	// Bearer surface.
	v1.GET("/auth", authH.Me, protected)
	v1.PUT("/auth", authH.UpdateMe, protected)
	v1.DELETE("/auth", authH.Delete, protected)
	v1.POST("/auth/logout", authH.Logout, protected)
	v1.PUT("/auth/update-password", authH.ChangePassword, protected)

	v1.POST("/gardens", gardenH.Create, protected)
	v1.GET("/gardens", gardenH.ListMine, protected)
	v1.POST("/gardens/:id/join", gardenH.Join, protected)

	v1.GET("/push", pushH.Get, protected)
	v1.PUT("/push", pushH.Update, protected)
}
