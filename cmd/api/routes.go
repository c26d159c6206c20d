package main

import (
	"net/http"

	"webconferencing/internal/httpapi"
	"webconferencing/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to the call engine.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, health gin.HandlerFunc) {
	// public
	r.GET("/healthz", health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/v1/auth")
	{
		if h.AllowLogin {
			authGroup.POST("/login", h.Login)
		}
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireUser())
	{
		v1.GET("/events", h.Events)
		v1.GET("/providers", h.ListProviders)
		v1.GET("/webrtc/settings", h.GetRTCConfiguration)

		users := v1.Group("/users")
		{
			users.GET("/me/calls", h.MyCalls)
			users.GET("/:id", h.UserInfo)
		}
		v1.GET("/spaces/:id", h.SpaceInfo)
		v1.POST("/rooms/:id", h.RoomInfo)

		// Guests may take part in calls they were invited to but not create or remove them.
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleUser, rbac.RoleGuest))
		{
			calls.POST("", rbac.RequireAnyRole(rbac.RoleUser), h.AddCall)
			calls.GET("/:id", h.GetCall)
			calls.POST("/:id/start", h.StartCall)
			calls.POST("/:id/join", h.JoinCall)
			calls.POST("/:id/leave", h.LeaveCall)
			calls.POST("/:id/stop", h.StopCall)
			calls.DELETE("/:id", rbac.RequireAnyRole(rbac.RoleUser), h.RemoveCall)
			calls.POST("/:id/token", h.CallToken)
		}

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdministrator))
		{
			admin.POST("/providers/:type", h.SaveProvider)
			admin.GET("/webrtc/settings", h.GetRTCConfiguration)
			admin.POST("/webrtc/settings", h.SaveRTCConfiguration)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
