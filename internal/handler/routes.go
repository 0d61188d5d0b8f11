package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/middleware"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
)

// DocumentDownloadPath is the route, relative to the API prefix, that serves signed document links.
const DocumentDownloadPath = "/documents/download"

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth       *AuthHandler
	Concession *ConcessionHandler
	Document   *DocumentHandler
	Dashboard  *DashboardHandler
	Export     *ExportHandler
	Metrics    *MetricsHandler
}

// RouteDeps carries the collaborators the route table needs besides handlers.
type RouteDeps struct {
	Prefix    string
	Tokens    middleware.TokenValidator
	Audit     middleware.AuditRecorder
	RateLimit gin.HandlerFunc
}

// RegisterRoutes mounts probes at the root and the API under deps.Prefix.
func RegisterRoutes(r *gin.Engine, h Handlers, deps RouteDeps) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(deps.Prefix)
	if deps.RateLimit != nil {
		api.Use(deps.RateLimit)
	}

	auth := api.Group("/auth")
	auth.POST("/students/signup", h.Auth.SignupStudent)
	auth.POST("/students/login", h.Auth.LoginStudent)
	auth.POST("/admins/login", h.Auth.LoginAdmin)
	auth.GET("/me", middleware.JWT(deps.Tokens), h.Auth.Me)

	api.GET(DocumentDownloadPath,
		middleware.Audit(deps.Audit, models.AuditActionDownload, "document"),
		h.Document.Download,
	)

	authenticated := api.Group("")
	authenticated.Use(middleware.JWT(deps.Tokens))

	anyRole := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	applications := authenticated.Group("/applications")
	applications.POST("", studentOnly, h.Concession.Submit)
	applications.GET("/mine", studentOnly, h.Concession.Mine)
	applications.GET("/:id", anyRole, h.Concession.Get)
	applications.GET("/:id/renewal", studentOnly, h.Concession.Renewal)
	applications.PUT("/:id/documents/:slot", studentOnly, h.Document.Attach)
	applications.GET("/:id/documents", anyRole, h.Document.Bundle)

	admin := authenticated.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/applications", h.Concession.List)
	admin.POST("/applications/:id/decision", h.Concession.Decide)
	admin.POST("/applications/:id/extend", h.Concession.Extend)
	admin.GET("/dashboard", h.Dashboard.Summary)
	admin.GET("/exports/approved",
		middleware.Audit(deps.Audit, models.AuditActionExport, "approved_report"),
		h.Export.Approved,
	)
	admin.GET("/metrics", h.Metrics.Snapshot)
}
