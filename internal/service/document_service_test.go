package service

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
	"github.com/YashBawari18/Online-TicketConsession/pkg/storage"
)

var (
	samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
	samplePNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
)

type documentFixture struct {
	*concessionFixture
	docs *DocumentService
	dir  string
}

func newDocumentFixture(t *testing.T, maxSize int64) *documentFixture {
	t.Helper()
	f := newConcessionFixture(t, time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, []string{"application/pdf", "image/png", "image/jpeg"})
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("doc-secret", time.Hour)
	docs := NewDocumentService(f.svc, store, signer, nil, DocumentServiceConfig{MaxFileSize: maxSize, DownloadPath: "/api/v1/documents/download"})
	return &documentFixture{concessionFixture: f, docs: docs, dir: dir}
}

func (f *documentFixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(f.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(f.dir, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func TestDocumentServiceSubmitWithDocuments(t *testing.T) {
	f := newDocumentFixture(t, 0)

	app, err := f.docs.SubmitWithDocuments(context.Background(), "stu-1", validDraft(), map[models.DocumentSlot]Upload{
		models.SlotIDCard:     {Filename: "id.png", Data: samplePNG},
		models.SlotFeeReceipt: {Filename: "fee.pdf", Data: samplePDF},
	})
	require.NoError(t, err)
	require.NotNil(t, app.IDCardURL)
	require.NotNil(t, app.FeeReceiptURL)
	assert.Nil(t, app.AadharURL)
	assert.True(t, strings.HasPrefix(*app.IDCardURL, "id-cards/stu-1_"))
	assert.True(t, strings.HasSuffix(*app.FeeReceiptURL, ".pdf"))
	assert.Equal(t, models.Completeness{Uploaded: 2, Total: 3}, Completeness(app))
	assert.Len(t, f.storedFiles(t), 2)
}

func TestDocumentServiceDiscardsStagedFilesOnSubmitFailure(t *testing.T) {
	f := newDocumentFixture(t, 0)

	draft := validDraft()
	draft.Branch = "Aero"
	_, err := f.docs.SubmitWithDocuments(context.Background(), "stu-1", draft, map[models.DocumentSlot]Upload{
		models.SlotIDCard: {Data: samplePNG},
		models.SlotAadhar: {Data: samplePDF},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.storedFiles(t))
}

func TestDocumentServiceRejectsBadUploads(t *testing.T) {
	f := newDocumentFixture(t, 16)
	ctx := context.Background()

	_, err := f.docs.SubmitWithDocuments(ctx, "stu-1", validDraft(), map[models.DocumentSlot]Upload{
		models.SlotAadhar: {Data: append(samplePDF, make([]byte, 64)...)},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPayloadTooLarge))

	_, err = f.docs.SubmitWithDocuments(ctx, "stu-1", validDraft(), map[models.DocumentSlot]Upload{
		models.SlotAadhar: {Data: []byte("just some text")},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.docs.SubmitWithDocuments(ctx, "stu-1", validDraft(), map[models.DocumentSlot]Upload{
		"passport": {Data: samplePNG},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.storedFiles(t))
}

func TestDocumentServiceAttachReplacesPreviousFile(t *testing.T) {
	f := newDocumentFixture(t, 0)
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	first, err := f.docs.Attach(ctx, app.ID, models.SlotAadhar, Upload{Data: samplePDF}, studentClaims("stu-1"))
	require.NoError(t, err)
	require.NotNil(t, first.AadharURL)

	second, err := f.docs.Attach(ctx, app.ID, models.SlotAadhar, Upload{Data: samplePNG}, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.NotEqual(t, *first.AadharURL, *second.AadharURL)
	assert.Equal(t, []string{*second.AadharURL}, f.storedFiles(t))

	_, err = f.docs.Attach(ctx, app.ID, models.SlotIDCard, Upload{Data: samplePNG}, studentClaims("stu-2"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestDocumentServiceAttachRequiresPending(t *testing.T) {
	f := newDocumentFixture(t, 0)
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, app.ID, models.DecisionApproved, nil, "admin-1")
	require.NoError(t, err)

	_, err = f.docs.Attach(ctx, app.ID, models.SlotIDCard, Upload{Data: samplePNG}, studentClaims("stu-1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	assert.Empty(t, f.storedFiles(t))
}

func TestDocumentServiceBundleAndDownload(t *testing.T) {
	f := newDocumentFixture(t, 0)
	ctx := context.Background()
	app, err := f.docs.SubmitWithDocuments(ctx, "stu-1", validDraft(), map[models.DocumentSlot]Upload{
		models.SlotFeeReceipt: {Data: samplePDF},
	})
	require.NoError(t, err)

	bundle, err := f.docs.Bundle(ctx, app.ID, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.Completeness{Uploaded: 1, Total: 3}, bundle.Completeness)
	require.Len(t, bundle.Documents, 1)
	link := bundle.Documents[0]
	assert.Equal(t, models.SlotFeeReceipt, link.Slot)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/documents/download?token="))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	file, contentType, ref, err := f.docs.Open(parsed.Query().Get("token"))
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, link.Ref, ref)

	_, _, _, err = f.docs.Open("not-a-token")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
