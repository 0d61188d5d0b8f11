package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashBawari18/Online-TicketConsession/internal/service"
)

type fakeExportSrv struct {
	format service.ExportFormat
}

func (f *fakeExportSrv) Approved(_ context.Context, format service.ExportFormat) (*service.ExportResult, error) {
	f.format = format
	return &service.ExportResult{
		Filename:    "approved_concessions_2024-06-01.csv",
		ContentType: "text/csv; charset=utf-8",
		Format:      format,
		Count:       2,
		Data:        []byte("S.No.,Name\n1,Asha\n2,Ravi\n"),
	}, nil
}

func TestExportHandlerApproved(t *testing.T) {
	srv := &fakeExportSrv{}
	router := newTestRouter(adminTestClaims)
	router.GET("/admin/export/approved", NewExportHandler(srv).Approved)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/export/approved?format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ExportFormatCSV, srv.format)
	assert.Equal(t, `attachment; filename="approved_concessions_2024-06-01.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", rec.Header().Get("X-Record-Count"))
	assert.Contains(t, rec.Body.String(), "1,Asha")
}

func TestExportHandlerRejectsUnknownFormat(t *testing.T) {
	srv := &fakeExportSrv{}
	router := newTestRouter(adminTestClaims)
	router.GET("/admin/export/approved", NewExportHandler(srv).Approved)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/export/approved?format=xlsx", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.format)
}
