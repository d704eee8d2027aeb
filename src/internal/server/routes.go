package server

import (
	"context"
	"net/http"
	"time"

	"storefront-session-svc/src/internal/dependency"
	"storefront-session-svc/src/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(middleware.CORS)

	setupHealthEndpoint(deps)
	setupSessionRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		logrus.Debug("Health check endpoint requested")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		components := gin.H{
			"storage": gin.H{
				"driver": cfg.Storage.Driver,
				"status": status(deps.Store.Ping(ctx)),
			},
		}
		if deps.Mongodb != nil {
			components["mongodb"] = status(deps.Mongodb.Client.Ping(ctx, nil))
		}
		if deps.Redis != nil {
			components["redis"] = status(deps.Redis.Client.Ping(ctx).Err())
		}
		if deps.RabbitMQ != nil {
			components["rabbitmq"] = connected(!deps.RabbitMQ.Conn.IsClosed())
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"service":       cfg.App.Name,
			"version":       cfg.App.Version,
			"authenticated": deps.Store.IsAuthenticated(),
			"components":    components,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func setupSessionRoutes(router *gin.Engine, deps *dependency.Manager) {
	handler := deps.SessionHandler
	requireSession := middleware.RequireSession(deps.Store, deps.Config.Api.LoginPath)

	api := router.Group("/api/v1/session")
	{
		api.GET("", setRouteName("getSession"), handler.GetSession)
		api.POST("/login", setRouteName("login"), handler.Login)
		api.POST("/logout", setRouteName("logout"), handler.Logout)
		api.POST("/refresh", setRouteName("refresh"), handler.Refresh)

		api.GET("/profile",
			setRouteName("getProfile"),
			requireSession,
			handler.GetProfile)

		api.PUT("/profile",
			setRouteName("updateProfile"),
			requireSession,
			handler.UpdateProfile)
	}
}

func setRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("route_name", name)
		c.Next()
	}
}

func status(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func connected(ok bool) string {
	if ok {
		return "connected"
	}
	return "disconnected"
}
