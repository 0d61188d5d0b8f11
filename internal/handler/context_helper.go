package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/YashBawari18/Online-TicketConsession/internal/middleware"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
	"github.com/YashBawari18/Online-TicketConsession/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// requireClaims writes 401 and returns nil when the request is unauthenticated.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// readUpload reads at most limit bytes of an uploaded file. Larger files fail with
// PayloadTooLarge before they are fully buffered.
func readUpload(header *multipart.FileHeader, limit int64) (service.Upload, error) {
	if header.Size > limit {
		return service.Upload{}, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%s exceeds the upload size limit", header.Filename))
	}
	file, err := header.Open()
	if err != nil {
		return service.Upload{}, invalidPayload(err, "failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return service.Upload{}, invalidPayload(err, "failed to read uploaded file")
	}
	if int64(len(data)) > limit {
		return service.Upload{}, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%s exceeds the upload size limit", header.Filename))
	}
	return service.Upload{Filename: header.Filename, Data: data}, nil
}

// bodyTooLarge reports whether err came from an http.MaxBytesReader limit.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
