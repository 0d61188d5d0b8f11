package handler

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
	"github.com/YashBawari18/Online-TicketConsession/pkg/response"
)

type documentService interface {
	Attach(ctx context.Context, id string, slot models.DocumentSlot, file service.Upload, actor *models.JWTClaims) (*models.ConcessionApplication, error)
	Bundle(ctx context.Context, id string, actor *models.JWTClaims) (*models.DocumentBundle, error)
	Open(token string) (io.ReadSeekCloser, string, string, error)
}

// DocumentHandler serves evidence uploads and signed downloads.
type DocumentHandler struct {
	service     documentService
	maxFileSize int64
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc documentService, maxFileSize int64) *DocumentHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	return &DocumentHandler{service: svc, maxFileSize: maxFileSize}
}

// Attach godoc
// @Summary Upload a document into a slot
// @Tags Documents
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param slot path string true "id_card, aadhar or fee_receipt"
// @Param file formData file true "Document (PDF or image)"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /applications/{id}/documents/{slot} [put]
func (h *DocumentHandler) Attach(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	slot := models.DocumentSlot(c.Param("slot"))
	if !slot.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slot must be id_card, aadhar or fee_receipt"))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "upload exceeds the size limit"))
			return
		}
		response.Error(c, invalidPayload(err, "file is required"))
		return
	}
	upload, err := readUpload(header, h.maxFileSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	app, err := h.service.Attach(c.Request.Context(), c.Param("id"), slot, upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Bundle godoc
// @Summary Document completeness and signed download links
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/documents [get]
func (h *DocumentHandler) Bundle(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	bundle, err := h.service.Bundle(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bundle, nil)
}

// Download godoc
// @Summary Stream a document through a signed link
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, contentType, ref, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := path.Base(ref)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "inline; filename=\""+name+"\"")
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, name, time.Time{}, file)
}
