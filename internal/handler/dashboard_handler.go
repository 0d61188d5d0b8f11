package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/middleware"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context) (*models.DashboardSummary, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Administrator dashboard summary
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, cacheHit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.Meta(c))
}
