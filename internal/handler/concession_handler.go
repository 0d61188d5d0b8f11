package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/middleware"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
	"github.com/YashBawari18/Online-TicketConsession/pkg/response"
)

const multipartDraftField = "application"

type concessionService interface {
	Submit(ctx context.Context, studentID string, draft models.ApplicationDraft) (*models.ConcessionApplication, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ConcessionApplication, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.ConcessionApplication, error)
	Decide(ctx context.Context, id string, decision models.Decision, dates *models.PassDates, reviewerID string) (*models.ConcessionApplication, error)
	ExtendValidity(ctx context.Context, id string, months int, actorID string) (*models.ConcessionApplication, error)
	Renew(ctx context.Context, id string, studentID string) (*models.ApplicationDraft, error)
}

type documentSubmitter interface {
	SubmitWithDocuments(ctx context.Context, studentID string, draft models.ApplicationDraft, files map[models.DocumentSlot]service.Upload) (*models.ConcessionApplication, error)
}

type applicationFinder interface {
	Applications(ctx context.Context, filter models.ApplicationFilter) ([]models.ConcessionApplication, error)
}

// ConcessionHandler exposes the application lifecycle over HTTP.
type ConcessionHandler struct {
	service     concessionService
	documents   documentSubmitter
	finder      applicationFinder
	maxFileSize int64
}

// NewConcessionHandler constructs the handler.
func NewConcessionHandler(svc concessionService, documents documentSubmitter, finder applicationFinder, maxFileSize int64) *ConcessionHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	return &ConcessionHandler{service: svc, documents: documents, finder: finder, maxFileSize: maxFileSize}
}

// Submit godoc
// @Summary Submit a concession application
// @Description Accepts a JSON draft, or multipart/form-data with the draft JSON in the "application" field and optional id_card, aadhar and fee_receipt files.
// @Tags Applications
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body models.ApplicationDraft true "Application draft"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /applications [post]
func (h *ConcessionHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.submitMultipart(c, claims)
		return
	}

	var draft models.ApplicationDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.Error(c, invalidPayload(err, "invalid application payload"))
		return
	}
	app, err := h.service.Submit(c.Request.Context(), claims.UserID, draft)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

func (h *ConcessionHandler) submitMultipart(c *gin.Context, claims *models.JWTClaims) {
	slots := int64(len(models.DocumentSlots))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, slots*h.maxFileSize+1<<20)

	form, err := c.MultipartForm()
	if err != nil {
		if bodyTooLarge(err) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "upload exceeds the size limit"))
			return
		}
		response.Error(c, invalidPayload(err, "invalid multipart payload"))
		return
	}

	values := form.Value[multipartDraftField]
	if len(values) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "application field is required"))
		return
	}
	var draft models.ApplicationDraft
	if err := json.Unmarshal([]byte(values[0]), &draft); err != nil {
		response.Error(c, invalidPayload(err, "invalid application payload"))
		return
	}

	files := make(map[models.DocumentSlot]service.Upload)
	for _, slot := range models.DocumentSlots {
		headers := form.File[string(slot)]
		if len(headers) == 0 {
			continue
		}
		upload, err := readUpload(headers[0], h.maxFileSize)
		if err != nil {
			response.Error(c, err)
			return
		}
		files[slot] = upload
	}

	app, err := h.documents.SubmitWithDocuments(c.Request.Context(), claims.UserID, draft, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Mine godoc
// @Summary List my applications
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /applications/mine [get]
func (h *ConcessionHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	apps, err := h.service.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(apps))
	response.JSON(c, http.StatusOK, apps, nil, middleware.Meta(c))
}

// Get godoc
// @Summary Get an application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ConcessionHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Renewal godoc
// @Summary Prefilled renewal draft for an expired pass
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/renewal [get]
func (h *ConcessionHandler) Renewal(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	draft, err := h.service.Renew(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// List godoc
// @Summary List applications for review
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Matches name, form number or stations"
// @Param status query string false "pending, approved or rejected"
// @Param branch query string false "Branch"
// @Param year query string false "FE, SE, TE or BE"
// @Param documents query string false "any, withDocs or withoutDocs"
// @Success 200 {object} response.Envelope
// @Router /admin/applications [get]
func (h *ConcessionHandler) List(c *gin.Context) {
	filter := models.ApplicationFilter{
		Search:           c.Query("search"),
		Status:           models.ApplicationStatus(strings.TrimSpace(c.Query("status"))),
		Branch:           models.Branch(strings.TrimSpace(c.Query("branch"))),
		Year:             models.AcademicYear(strings.TrimSpace(c.Query("year"))),
		DocumentPresence: models.DocumentPresence(strings.TrimSpace(c.Query("documents"))),
	}
	apps, err := h.finder.Applications(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(apps))
	response.JSON(c, http.StatusOK, apps, nil, middleware.Meta(c))
}

// Decide godoc
// @Summary Approve or reject a pending application
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param payload body models.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/decision [post]
func (h *ConcessionHandler) Decide(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid decision payload"))
		return
	}
	app, err := h.service.Decide(c.Request.Context(), c.Param("id"), req.Decision, req.PassDates, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Extend godoc
// @Summary Extend the validity of an approved pass
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param payload body models.ExtendRequest true "Months to add"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/extend [post]
func (h *ConcessionHandler) Extend(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid extend payload"))
		return
	}
	app, err := h.service.ExtendValidity(c.Request.Context(), c.Param("id"), req.Months, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
