package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
	"github.com/YashBawari18/Online-TicketConsession/pkg/storage"
)

const defaultMaxDocumentSize = 5 * 1024 * 1024

type documentStore interface {
	Store(bucket, owner string, data []byte) (string, error)
	Open(ref string) (io.ReadSeekCloser, string, error)
	Delete(ref string) error
}

type urlSigner interface {
	Generate(subject, ref string) (string, time.Time, error)
	Parse(token string) (string, string, time.Time, error)
}

type documentLifecycle interface {
	Submit(ctx context.Context, studentID string, draft models.ApplicationDraft) (*models.ConcessionApplication, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ConcessionApplication, error)
	AttachDocument(ctx context.Context, id string, slot models.DocumentSlot, ref string, actorID string) (*models.ConcessionApplication, error)
}

// DocumentServiceConfig tunes upload limits and link generation.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	DownloadPath string
}

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// DocumentService stores evidence files and binds them to applications.
type DocumentService struct {
	lifecycle documentLifecycle
	store     documentStore
	signer    urlSigner
	logger    *zap.Logger
	cfg       DocumentServiceConfig
}

// NewDocumentService constructs a document service.
func NewDocumentService(lifecycle documentLifecycle, store documentStore, signer urlSigner, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxDocumentSize
	}
	return &DocumentService{lifecycle: lifecycle, store: store, signer: signer, logger: logger, cfg: cfg}
}

// SubmitWithDocuments stores the provided files, then submits the draft referencing them.
// Stored files are removed again when submission fails.
func (s *DocumentService) SubmitWithDocuments(ctx context.Context, studentID string, draft models.ApplicationDraft, files map[models.DocumentSlot]Upload) (*models.ConcessionApplication, error) {
	refs, err := s.stage(studentID, files)
	if err != nil {
		return nil, err
	}
	draft.Documents = refs
	app, err := s.lifecycle.Submit(ctx, studentID, draft)
	if err != nil {
		s.discard(refs)
		return nil, err
	}
	return app, nil
}

// Attach stores file and places it into slot of the actor's pending application.
func (s *DocumentService) Attach(ctx context.Context, id string, slot models.DocumentSlot, file Upload, actor *models.JWTClaims) (*models.ConcessionApplication, error) {
	if !slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document slot")
	}
	app, err := s.lifecycle.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "documents can only change while the application is pending")
	}
	refs, err := s.stage(app.StudentID, map[models.DocumentSlot]Upload{slot: file})
	if err != nil {
		return nil, err
	}
	updated, err := s.lifecycle.AttachDocument(ctx, id, slot, refs[slot], actor.UserID)
	if err != nil {
		s.discard(refs)
		return nil, err
	}
	if previous := app.Document(slot); previous != nil && *previous != refs[slot] {
		s.discard(map[models.DocumentSlot]string{slot: *previous})
	}
	return updated, nil
}

// Bundle reports completeness and signed download links for an application's documents.
func (s *DocumentService) Bundle(ctx context.Context, id string, actor *models.JWTClaims) (*models.DocumentBundle, error) {
	app, err := s.lifecycle.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	bundle := &models.DocumentBundle{
		ApplicationID: app.ID,
		Completeness:  Completeness(app),
		Documents:     make([]models.DocumentLink, 0, len(models.DocumentSlots)),
	}
	for _, slot := range models.DocumentSlots {
		ref := app.Document(slot)
		if ref == nil || *ref == "" {
			continue
		}
		token, expiresAt, err := s.signer.Generate(app.ID, *ref)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document link")
		}
		bundle.Documents = append(bundle.Documents, models.DocumentLink{
			Slot:      slot,
			Ref:       *ref,
			URL:       s.downloadURL(token),
			ExpiresAt: expiresAt,
		})
	}
	return bundle, nil
}

// Open resolves a signed download token to the stored document.
func (s *DocumentService) Open(token string) (io.ReadSeekCloser, string, string, error) {
	subject, ref, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, contentType, err := s.store.Open(ref)
	if err != nil {
		s.logger.Warn("signed document missing", zap.String("application_id", subject), zap.String("ref", ref), zap.Error(err))
		return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return file, contentType, ref, nil
}

func (s *DocumentService) stage(owner string, files map[models.DocumentSlot]Upload) (map[models.DocumentSlot]string, error) {
	for slot, file := range files {
		if !slot.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document slot "+string(slot))
		}
		if err := s.checkUpload(file); err != nil {
			return nil, err
		}
	}
	refs := make(map[models.DocumentSlot]string, len(files))
	for _, slot := range models.DocumentSlots {
		file, ok := files[slot]
		if !ok {
			continue
		}
		ref, err := s.store.Store(slot.Bucket(), owner, file.Data)
		if err != nil {
			s.discard(refs)
			if errors.Is(err, storage.ErrUnsupportedType) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "document must be a PDF or an image")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to store document")
		}
		refs[slot] = ref
	}
	return refs, nil
}

func (s *DocumentService) checkUpload(file Upload) error {
	if len(file.Data) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "document is empty")
	}
	if int64(len(file.Data)) > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "document exceeds the upload size limit")
	}
	return nil
}

func (s *DocumentService) discard(refs map[models.DocumentSlot]string) {
	for _, ref := range refs {
		if err := s.store.Delete(ref); err != nil {
			s.logger.Warn("failed to discard staged document", zap.String("ref", ref), zap.Error(err))
		}
	}
}

func (s *DocumentService) downloadURL(token string) string {
	base := s.cfg.DownloadPath
	if base == "" {
		base = "/api/v1/documents/download"
	}
	return base + "?token=" + url.QueryEscape(token)
}
