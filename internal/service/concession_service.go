package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

// DashboardCachePattern matches every cached dashboard payload.
const DashboardCachePattern = "dash:concessions:*"

const auditResourceApplication = "concession_application"

type concessionStore interface {
	Create(ctx context.Context, app *models.ConcessionApplication) error
	FindByID(ctx context.Context, id string) (*models.ConcessionApplication, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ConcessionApplication, error)
	List(ctx context.Context, status models.ApplicationStatus) ([]models.ConcessionApplication, error)
	ListBySupersedes(ctx context.Context, priorID string) ([]models.ConcessionApplication, error)
	UpdateWhereStatus(ctx context.Context, id string, expected models.ApplicationStatus, patch gateway.Row) (int64, error)
	UpdateWhere(ctx context.Context, id string, match gateway.Match, patch gateway.Row) (int64, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// ConcessionService runs the application lifecycle: submit, decide, extend and renew.
type ConcessionService struct {
	repo      concessionStore
	validator *validator.Validate
	cache     cacheInvalidator
	audit     auditRecorder
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// ConcessionServiceOption configures optional collaborators.
type ConcessionServiceOption func(*ConcessionService)

// WithConcessionCache invalidates dashboard caches after every mutation.
func WithConcessionCache(cache cacheInvalidator) ConcessionServiceOption {
	return func(s *ConcessionService) {
		s.cache = cache
	}
}

// WithConcessionAudit records lifecycle events.
func WithConcessionAudit(audit auditRecorder) ConcessionServiceOption {
	return func(s *ConcessionService) {
		s.audit = audit
	}
}

// WithConcessionMetrics counts lifecycle events.
func WithConcessionMetrics(metrics *MetricsService) ConcessionServiceOption {
	return func(s *ConcessionService) {
		s.metrics = metrics
	}
}

// WithConcessionClock overrides the time source.
func WithConcessionClock(now func() time.Time) ConcessionServiceOption {
	return func(s *ConcessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewConcessionService constructs the lifecycle service.
func NewConcessionService(repo concessionStore, validate *validator.Validate, logger *zap.Logger, opts ...ConcessionServiceOption) *ConcessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ConcessionService{repo: repo, validator: validate, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates a draft and stores it as a pending application owned by studentID.
func (s *ConcessionService) Submit(ctx context.Context, studentID string, draft models.ApplicationDraft) (*models.ConcessionApplication, error) {
	now := s.now().UTC()
	if err := validateDraftFields(&draft, now); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if draft.SupersedesID != nil && *draft.SupersedesID != "" {
		if err := s.checkSupersedes(ctx, studentID, *draft.SupersedesID); err != nil {
			return nil, err
		}
	} else {
		draft.SupersedesID = nil
	}

	app := &models.ConcessionApplication{
		StudentID:        studentID,
		StudentName:      strings.TrimSpace(draft.StudentName),
		Year:             draft.Year,
		Branch:           draft.Branch,
		Category:         draft.Category,
		DateOfBirth:      draft.DateOfBirth,
		Age:              AgeAt(draft.DateOfBirth, now),
		FromStation:      strings.TrimSpace(draft.FromStation),
		ToStation:        strings.TrimSpace(draft.ToStation),
		ClassType:        draft.ClassType,
		Railway:          draft.Railway,
		PassType:         draft.PassType,
		ConcessionFormNo: strings.TrimSpace(draft.ConcessionFormNo),
		SeasonTicketNo:   strings.TrimSpace(draft.SeasonTicketNo),
		Status:           models.StatusPending,
		SupersedesID:     draft.SupersedesID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if draft.PreviousPassDate != nil && !draft.PreviousPassDate.IsZero() {
		issue := *draft.PreviousPassDate
		app.PreviousPassDate = &issue
		app.PreviousPassExpiry = DeriveExpiry(issue, draft.PassType).Ptr()
	}
	for slot, ref := range draft.Documents {
		if !slot.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document slot "+string(slot))
		}
		if ref != "" {
			ref := ref
			app.SetDocument(slot, &ref)
		}
	}

	if err := s.repo.Create(ctx, app); err != nil {
		if app.SupersedesID != nil && errors.Is(err, gateway.ErrDuplicate) {
			return nil, errAlreadyRenewed
		}
		return nil, storageFailure(err, "failed to submit application")
	}
	s.metrics.RecordSubmission()
	s.afterMutation(ctx, studentID, models.AuditActionSubmit, app.ID, map[string]interface{}{
		"pass_type":  app.PassType,
		"supersedes": app.SupersedesID,
		"documents":  Completeness(app).Uploaded,
	})
	return app, nil
}

// Get loads one application. Students may only read their own records.
func (s *ConcessionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ConcessionApplication, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && app.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	return app, nil
}

// ListForStudent returns a student's applications, newest first.
func (s *ConcessionService) ListForStudent(ctx context.Context, studentID string) ([]models.ConcessionApplication, error) {
	apps, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storageFailure(err, "failed to list applications")
	}
	return s.withExpiry(apps), nil
}

// List returns every application, newest first, optionally restricted to status.
func (s *ConcessionService) List(ctx context.Context, status models.ApplicationStatus) ([]models.ConcessionApplication, error) {
	if status != "" && !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status has an unsupported value")
	}
	apps, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, storageFailure(err, "failed to list applications")
	}
	return s.withExpiry(apps), nil
}

// Decide records an administrator's verdict on a pending application. Approval opens the
// validity window and may override the previous-pass dates.
func (s *ConcessionService) Decide(ctx context.Context, id string, decision models.Decision, dates *models.PassDates, reviewerID string) (*models.ConcessionApplication, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approved or rejected")
	}
	if err := validatePassDates(dates); err != nil {
		return nil, err
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusPending {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now().UTC()
	patch := gateway.Row{
		"status":     string(status),
		"decided_by": reviewerID,
		"decided_at": now,
		"updated_at": now,
	}
	if status == models.StatusApproved {
		validFrom := now
		var validUntil time.Time
		if dates != nil && !dates.IssueDate.IsZero() {
			expiry := dates.ExpiryDate
			if expiry.IsZero() {
				expiry = DeriveExpiry(dates.IssueDate, app.PassType)
			}
			patch["previous_pass_date"] = dates.IssueDate
			patch["previous_pass_expiry"] = expiry
			validFrom = dates.IssueDate.Time
			validUntil = PassEnd(expiry)
		} else {
			validUntil = PassEnd(DeriveExpiry(models.NewDate(validFrom), app.PassType))
		}
		patch["valid_from"] = validFrom
		patch["valid_until"] = validUntil
	}

	affected, err := s.repo.UpdateWhereStatus(ctx, id, models.StatusPending, patch)
	if err != nil {
		return nil, storageFailure(err, "failed to record decision")
	}
	if affected == 0 {
		return nil, s.transitionFailure(ctx, id, appErrors.ErrInvalidTransition)
	}

	s.metrics.RecordDecision(string(status))
	s.afterMutation(ctx, reviewerID, models.AuditActionDecide, id, map[string]interface{}{
		"decision":   status,
		"pass_dates": dates,
	})
	return s.load(ctx, id)
}

// ExtendValidity pushes valid_until of an approved application forward by months calendar
// months, counting from valid_until or from now when unset. The write only lands while
// valid_until still holds the value it was computed from; a concurrent change yields
// InvalidTransition and the caller may retry.
func (s *ConcessionService) ExtendValidity(ctx context.Context, id string, months int, actorID string) (*models.ConcessionApplication, error) {
	if months < 1 || months > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "months must be between 1 and 12")
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved applications can be extended")
	}

	now := s.now().UTC()
	newUntil := ExtendedValidity(app.ValidUntil, now, months)
	patch := gateway.Row{"valid_until": newUntil, "updated_at": now}
	if app.ValidFrom == nil {
		patch["valid_from"] = now
	}
	match := gateway.Match{"status": string(models.StatusApproved), "valid_until": nil}
	if app.ValidUntil != nil {
		match["valid_until"] = *app.ValidUntil
	}
	affected, err := s.repo.UpdateWhere(ctx, id, match, patch)
	if err != nil {
		return nil, storageFailure(err, "failed to extend validity")
	}
	if affected == 0 {
		return nil, s.transitionFailure(ctx, id, appErrors.Clone(appErrors.ErrInvalidTransition, "validity changed while extending, retry"))
	}

	s.metrics.RecordExtension()
	s.afterMutation(ctx, actorID, models.AuditActionExtend, id, map[string]interface{}{
		"months":      months,
		"valid_until": newUntil,
	})
	return s.load(ctx, id)
}

// Renew builds a draft prefilled from an expired approved application. The prior record is
// left untouched; submitting the draft links back to it through supersedes_id.
func (s *ConcessionService) Renew(ctx context.Context, id string, studentID string) (*models.ApplicationDraft, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	if app.Status != models.StatusApproved || !app.IsExpired {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only expired passes can be renewed")
	}

	priorID := app.ID
	draft := &models.ApplicationDraft{
		StudentName:    app.StudentName,
		Year:           app.Year,
		Branch:         app.Branch,
		Category:       app.Category,
		DateOfBirth:    app.DateOfBirth,
		FromStation:    app.FromStation,
		ToStation:      app.ToStation,
		ClassType:      app.ClassType,
		Railway:        app.Railway,
		PassType:       app.PassType,
		SeasonTicketNo: app.SeasonTicketNo,
		SupersedesID:   &priorID,
	}
	if app.ValidFrom != nil {
		draft.PreviousPassDate = models.NewDate(*app.ValidFrom).Ptr()
	}
	return draft, nil
}

// AttachDocument stores ref in slot of a pending application, replacing any previous value.
func (s *ConcessionService) AttachDocument(ctx context.Context, id string, slot models.DocumentSlot, ref string, actorID string) (*models.ConcessionApplication, error) {
	if !slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document slot")
	}
	if strings.TrimSpace(ref) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document reference is required")
	}
	affected, err := s.repo.UpdateWhereStatus(ctx, id, models.StatusPending, gateway.Row{
		slot.Column(): ref,
		"updated_at":  s.now().UTC(),
	})
	if err != nil {
		return nil, storageFailure(err, "failed to attach document")
	}
	if affected == 0 {
		return nil, s.transitionFailure(ctx, id, appErrors.Clone(appErrors.ErrInvalidTransition, "documents can only change while the application is pending"))
	}

	s.metrics.RecordDocument(string(slot))
	s.afterMutation(ctx, actorID, models.AuditActionAttach, id, map[string]interface{}{
		"slot": slot,
		"ref":  ref,
	})
	return s.load(ctx, id)
}

func (s *ConcessionService) checkSupersedes(ctx context.Context, studentID, priorID string) error {
	prior, err := s.load(ctx, priorID)
	if err != nil {
		return err
	}
	if prior.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrValidation, "supersedes_id must reference one of your applications")
	}
	if prior.Status != models.StatusApproved {
		return appErrors.Clone(appErrors.ErrValidation, "supersedes_id must reference an approved application")
	}
	if !prior.IsExpired {
		return appErrors.Clone(appErrors.ErrValidation, "supersedes_id must reference an expired pass")
	}
	renewals, err := s.repo.ListBySupersedes(ctx, priorID)
	if err != nil {
		return storageFailure(err, "failed to check renewals")
	}
	for i := range renewals {
		if renewals[i].Status != models.StatusRejected {
			return errAlreadyRenewed
		}
	}
	return nil
}

func (s *ConcessionService) load(ctx context.Context, id string) (*models.ConcessionApplication, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.ErrApplicationNotFound
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrApplicationNotFound
		}
		return nil, storageFailure(err, "failed to load application")
	}
	app.IsExpired = IsExpired(app, s.now())
	return app, nil
}

// transitionFailure explains a conditional update that matched no rows.
func (s *ConcessionService) transitionFailure(ctx context.Context, id string, transitionErr error) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return transitionErr
}

func (s *ConcessionService) withExpiry(apps []models.ConcessionApplication) []models.ConcessionApplication {
	now := s.now()
	for i := range apps {
		apps[i].IsExpired = IsExpired(&apps[i], now)
	}
	return apps
}

func (s *ConcessionService) afterMutation(ctx context.Context, actorID, action, resourceID string, payload map[string]interface{}) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, DashboardCachePattern); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
	if s.audit == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode audit payload", zap.Error(err))
		raw = nil
	}
	entry := models.AuditLog{
		Action:     action,
		Resource:   auditResourceApplication,
		ResourceID: &resourceID,
		Payload:    raw,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	s.audit.Record(ctx, entry)
}
