package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicedesk/internal/auth"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/rbac"
	"voicedesk/internal/voice"
)

type registerDeps struct {
	auth     *auth.Manager
	provider voice.Provider
	handlers httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	h := deps.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := deps.provider.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// auth (public)
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	// protected
	authed := v1.Group("")
	authed.Use(auth.RequireAccessToken(deps.auth))
	authed.Use(rbac.RequireTenant())
	{
		authed.GET("/me", h.Me)

		calls := authed.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleUser))
		{
			calls.POST("", h.PlaceCall)
			calls.GET("/:call_id", h.GetCallStatus)
			calls.GET("/:call_id/audio", h.GetCallAudio)
		}

		taskGroup := authed.Group("/tasks")
		taskGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleUser))
		{
			taskGroup.GET("", h.ListTasks)
			taskGroup.POST("/ingest", h.IngestTask)
		}

		tenantGroup := authed.Group("/tenant")
		{
			tenantGroup.GET("", h.GetTenantProfile)
			tenantGroup.PUT("", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager), h.UpdateTenantProfile)
			tenantGroup.GET("/members", h.ListMembers)
			tenantGroup.POST("/members", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager), h.AddMember)
		}

		billingGroup := authed.Group("/billing")
		billingGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager))
		{
			billingGroup.GET("/spend", h.GetSpend)
		}

		reportGroup := authed.Group("/reports")
		reportGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager))
		{
			reportGroup.GET("/tasks", h.TasksSummary)
			reportGroup.GET("/spend", h.SpendSummary)
		}

		adminGroup := authed.Group("/admin")
		adminGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			adminGroup.GET("/audit", h.ListAuditEvents)
		}
	}
}
