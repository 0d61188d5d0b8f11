package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	"github.com/YashBawari18/Online-TicketConsession/pkg/response"
)

type exportService interface {
	Approved(ctx context.Context, format service.ExportFormat) (*service.ExportResult, error)
}

// ExportHandler serves rendered reports as downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Approved godoc
// @Summary Export approved applications
// @Tags Admin
// @Produce application/pdf,text/csv
// @Security BearerAuth
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/exports/approved [get]
func (h *ExportHandler) Approved(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Approved(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("X-Record-Count", strconv.Itoa(result.Count))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
