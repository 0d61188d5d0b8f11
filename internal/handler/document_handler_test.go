package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

type fakeDocumentSrv struct {
	attachedSlot models.DocumentSlot
	attached     service.Upload
	openErr      error
	content      []byte
}

func (f *fakeDocumentSrv) Attach(_ context.Context, id string, slot models.DocumentSlot, file service.Upload, _ *models.JWTClaims) (*models.ConcessionApplication, error) {
	f.attachedSlot = slot
	f.attached = file
	ref := slot.Bucket() + "/student-1_1_abcd.pdf"
	app := &models.ConcessionApplication{ID: id, Status: models.StatusPending}
	app.SetDocument(slot, &ref)
	return app, nil
}

func (f *fakeDocumentSrv) Bundle(_ context.Context, id string, _ *models.JWTClaims) (*models.DocumentBundle, error) {
	return &models.DocumentBundle{
		ApplicationID: id,
		Completeness:  models.Completeness{Uploaded: 1, Total: 3},
		Documents:     []models.DocumentLink{{Slot: models.SlotAadhar, Ref: "aadhar/x.pdf", URL: "/documents/download?token=t"}},
	}, nil
}

func (f *fakeDocumentSrv) Open(token string) (io.ReadSeekCloser, string, string, error) {
	if f.openErr != nil {
		return nil, "", "", f.openErr
	}
	return nopSeekCloser{bytes.NewReader(f.content)}, "application/pdf", "aadhar/student-1_1_abcd.pdf", nil
}

func TestDocumentHandlerAttach(t *testing.T) {
	srv := &fakeDocumentSrv{}
	router := newTestRouter(studentTestClaims)
	router.PUT("/applications/:id/documents/:slot", NewDocumentHandler(srv, 1024).Attach)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "receipt.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 receipt"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPut, "/applications/app-1/documents/fee_receipt", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SlotFeeReceipt, srv.attachedSlot)
	assert.Equal(t, "receipt.pdf", srv.attached.Filename)
	assert.Equal(t, "fee-receipts/student-1_1_abcd.pdf", decodeEnvelope(t, rec).Data["fee_receipt_url"])
}

func TestDocumentHandlerAttachRejectsUnknownSlotAndMissingFile(t *testing.T) {
	router := newTestRouter(studentTestClaims)
	router.PUT("/applications/:id/documents/:slot", NewDocumentHandler(&fakeDocumentSrv{}, 0).Attach)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/applications/app-1/documents/passport", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/applications/app-1/documents/aadhar", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandlerBundle(t *testing.T) {
	router := newTestRouter(adminTestClaims)
	router.GET("/applications/:id/documents", NewDocumentHandler(&fakeDocumentSrv{}, 0).Bundle)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/applications/app-1/documents", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "app-1", envelope.Data["application_id"])
	assert.Len(t, envelope.Data["documents"], 1)
}

func TestDocumentHandlerDownload(t *testing.T) {
	srv := &fakeDocumentSrv{content: []byte("%PDF-1.4 aadhar")}
	router := newTestRouter(nil)
	router.GET("/documents/download", NewDocumentHandler(srv, 0).Download)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/download?token=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "student-1_1_abcd.pdf")
	assert.Equal(t, "%PDF-1.4 aadhar", rec.Body.String())
}

func TestDocumentHandlerDownloadErrors(t *testing.T) {
	srv := &fakeDocumentSrv{openErr: appErrors.Clone(appErrors.ErrForbidden, "download link expired")}
	router := newTestRouter(nil)
	router.GET("/documents/download", NewDocumentHandler(srv, 0).Download)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/download", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/download?token=stale", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "download link expired", decodeEnvelope(t, rec).Error.Message)
}
