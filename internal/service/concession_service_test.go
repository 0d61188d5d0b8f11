package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/internal/repository"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

type auditRecorderStub struct {
	entries []models.AuditLog
}

func (a *auditRecorderStub) Record(_ context.Context, entry models.AuditLog) {
	a.entries = append(a.entries, entry)
}

type invalidatorStub struct {
	patterns []string
}

func (i *invalidatorStub) Invalidate(_ context.Context, pattern string) error {
	i.patterns = append(i.patterns, pattern)
	return nil
}

type failingConcessionStore struct {
	concessionStore
	err error
}

func (f failingConcessionStore) Create(context.Context, *models.ConcessionApplication) error {
	return f.err
}

func (f failingConcessionStore) FindByID(context.Context, string) (*models.ConcessionApplication, error) {
	return nil, f.err
}

type concessionFixture struct {
	svc   *ConcessionService
	repo  *repository.ConcessionRepository
	audit *auditRecorderStub
	cache *invalidatorStub
	clock *time.Time
}

func newConcessionFixture(t *testing.T, now time.Time) *concessionFixture {
	t.Helper()
	clock := now
	f := &concessionFixture{
		repo:  repository.NewConcessionRepository(gateway.NewMemory()),
		audit: &auditRecorderStub{},
		cache: &invalidatorStub{},
		clock: &clock,
	}
	f.svc = NewConcessionService(f.repo, nil, nil,
		WithConcessionAudit(f.audit),
		WithConcessionCache(f.cache),
		WithConcessionClock(func() time.Time { return *f.clock }),
	)
	return f
}

func validDraft() models.ApplicationDraft {
	return models.ApplicationDraft{
		StudentName:      "Asha Patil",
		Year:             models.YearSE,
		Branch:           models.BranchComputer,
		Category:         models.CategoryOpen,
		DateOfBirth:      models.MustDate("2003-05-01"),
		FromStation:      "Dadar",
		ToStation:        "Wardha",
		ClassType:        models.ClassSecond,
		Railway:          models.RailwayCentral,
		PassType:         models.PassMonthly,
		ConcessionFormNo: "CF-2024-17",
	}
}

func TestConcessionServiceSubmit(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newConcessionFixture(t, now)

	draft := validDraft()
	draft.PreviousPassDate = models.MustDate("2024-01-01").Ptr()
	draft.Documents = map[models.DocumentSlot]string{models.SlotIDCard: "id-cards/stu-1_1_ab.png"}

	app, err := f.svc.Submit(context.Background(), "stu-1", draft)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, 20, app.Age)
	assert.Equal(t, "2024-01-31", app.PreviousPassExpiry.String())
	assert.Nil(t, app.ValidUntil)
	assert.Equal(t, now, app.CreatedAt)
	assert.Equal(t, app.CreatedAt, app.UpdatedAt)
	require.NotNil(t, app.IDCardURL)

	stored, err := f.repo.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", stored.StudentID)
	assert.Equal(t, []string{DashboardCachePattern}, f.cache.patterns)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionSubmit, f.audit.entries[0].Action)
}

func TestConcessionServiceSubmitValidation(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	cases := map[string]func(d *models.ApplicationDraft){
		"unknown branch":  func(d *models.ApplicationDraft) { d.Branch = "Aero" },
		"missing station": func(d *models.ApplicationDraft) { d.ToStation = "  " },
		"missing form":    func(d *models.ApplicationDraft) { d.ConcessionFormNo = "" },
		"missing dob":     func(d *models.ApplicationDraft) { d.DateOfBirth = models.Date{} },
		"future dob":      func(d *models.ApplicationDraft) { d.DateOfBirth = models.MustDate("2030-01-01") },
		"bad class":       func(d *models.ApplicationDraft) { d.ClassType = "3rd Class" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			draft := validDraft()
			mutate(&draft)
			_, err := f.svc.Submit(context.Background(), "stu-1", draft)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation), err.Error())
		})
	}
	assert.Empty(t, f.audit.entries)
}

func TestConcessionServiceDecideTwice(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	dates := &models.PassDates{IssueDate: models.MustDate("2024-01-01"), ExpiryDate: models.MustDate("2024-01-31")}
	approved, err := f.svc.Decide(ctx, app.ID, models.DecisionApproved, dates, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, "2024-01-01", approved.PreviousPassDate.String())
	assert.Equal(t, "2024-01-31", approved.PreviousPassExpiry.String())
	require.NotNil(t, approved.ValidUntil)
	assert.True(t, time.Date(2024, 1, 31, 23, 59, 59, 999999000, time.UTC).Equal(*approved.ValidUntil))
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, "admin-1", *approved.DecidedBy)

	_, err = f.svc.Decide(ctx, app.ID, models.DecisionRejected, nil, "admin-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	stored, err := f.repo.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, "admin-1", *stored.DecidedBy)
}

func TestConcessionServiceDecideConditionalUpdateRace(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	// another reviewer wins between our read and our write
	_, err = f.repo.UpdateWhereStatus(ctx, app.ID, models.StatusPending, gateway.Row{"status": string(models.StatusRejected)})
	require.NoError(t, err)
	affected, err := f.repo.UpdateWhereStatus(ctx, app.ID, models.StatusPending, gateway.Row{"status": string(models.StatusApproved)})
	require.NoError(t, err)
	require.Zero(t, affected)

	err = f.svc.transitionFailure(ctx, app.ID, appErrors.ErrInvalidTransition)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	err = f.svc.transitionFailure(ctx, "missing", appErrors.ErrInvalidTransition)
	assert.True(t, appErrors.Is(err, appErrors.ErrApplicationNotFound))
}

func TestConcessionServiceDecideRejectKeepsPassFields(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	draft := validDraft()
	draft.PreviousPassDate = models.MustDate("2023-12-01").Ptr()
	app, err := f.svc.Submit(ctx, "stu-1", draft)
	require.NoError(t, err)

	rejected, err := f.svc.Decide(ctx, app.ID, models.DecisionRejected, &models.PassDates{IssueDate: models.MustDate("2024-01-01")}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "2023-12-01", rejected.PreviousPassDate.String())
	assert.Nil(t, rejected.ValidUntil)
}

func TestConcessionServiceDecideDerivesValidityWithoutDates(t *testing.T) {
	now := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	f := newConcessionFixture(t, now)
	ctx := context.Background()
	draft := validDraft()
	draft.PassType = models.PassQuarterly
	app, err := f.svc.Submit(ctx, "stu-1", draft)
	require.NoError(t, err)

	approved, err := f.svc.Decide(ctx, app.ID, models.DecisionApproved, nil, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, approved.ValidUntil)
	assert.True(t, time.Date(2024, 4, 5, 23, 59, 59, 999999000, time.UTC).Equal(*approved.ValidUntil))
	assert.False(t, approved.IsExpired)
}

func TestConcessionServiceDecideValidation(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, app.ID, "maybe", nil, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	bad := &models.PassDates{IssueDate: models.MustDate("2024-02-01"), ExpiryDate: models.MustDate("2024-01-01")}
	_, err = f.svc.Decide(ctx, app.ID, models.DecisionApproved, bad, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Decide(ctx, "missing", models.DecisionApproved, nil, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrApplicationNotFound))

	stored, err := f.repo.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestConcessionServiceExtendValidity(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, app.ID, models.DecisionApproved, &models.PassDates{IssueDate: models.MustDate("2023-12-02"), ExpiryDate: models.MustDate("2024-01-01")}, "admin-1")
	require.NoError(t, err)

	*f.clock = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	before, err := f.repo.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, IsExpired(before, *f.clock))

	extended, err := f.svc.ExtendValidity(ctx, app.ID, 3, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, extended.ValidUntil)
	assert.True(t, time.Date(2024, 4, 1, 23, 59, 59, 999999000, time.UTC).Equal(*extended.ValidUntil))
	assert.False(t, extended.IsExpired)
	assert.Equal(t, models.AuditActionExtend, f.audit.entries[len(f.audit.entries)-1].Action)
}

func TestConcessionServiceExtendRejectsNonApproved(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	_, err = f.svc.ExtendValidity(ctx, app.ID, 1, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = f.svc.ExtendValidity(ctx, app.ID, 0, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.ExtendValidity(ctx, "missing", 1, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrApplicationNotFound))
}

func TestConcessionServiceRenew(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	draft := validDraft()
	draft.Documents = map[models.DocumentSlot]string{models.SlotAadhar: "aadhar/x.pdf"}
	app, err := f.svc.Submit(ctx, "stu-1", draft)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, app.ID, "stu-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = f.svc.Decide(ctx, app.ID, models.DecisionApproved, &models.PassDates{IssueDate: models.MustDate("2024-01-05")}, "admin-1")
	require.NoError(t, err)

	*f.clock = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Renew(ctx, app.ID, "stu-2")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	renewal, err := f.svc.Renew(ctx, app.ID, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, renewal.SupersedesID)
	assert.Equal(t, app.ID, *renewal.SupersedesID)
	assert.Equal(t, "Dadar", renewal.FromStation)
	assert.Equal(t, "2024-01-05", renewal.PreviousPassDate.String())
	assert.Empty(t, renewal.Documents)
	assert.Empty(t, renewal.ConcessionFormNo)

	original, err := f.repo.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, original.Status)
	require.NotNil(t, original.AadharURL)

	renewal.ConcessionFormNo = "CF-2024-99"
	next, err := f.svc.Submit(ctx, "stu-1", *renewal)
	require.NoError(t, err)
	require.NotNil(t, next.SupersedesID)
	assert.Equal(t, app.ID, *next.SupersedesID)
	assert.Nil(t, next.AadharURL)

	renewal.SupersedesID = &next.ID
	_, err = f.svc.Submit(ctx, "stu-1", *renewal)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestConcessionServiceGetEnforcesOwnership(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, app.ID, &models.JWTClaims{UserID: "stu-2", Role: models.RoleStudent})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	got, err := f.svc.Get(ctx, app.ID, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)
}

func TestConcessionServiceListsNewestFirstWithExpiry(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	first, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	*f.clock = f.clock.Add(time.Hour)
	second, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, first.ID, models.DecisionApproved, nil, "admin-1")
	require.NoError(t, err)

	*f.clock = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mine, err := f.svc.ListForStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.True(t, mine[1].IsExpired)

	approved, err := f.svc.List(ctx, models.StatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)

	_, err = f.svc.List(ctx, "archived")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestConcessionServiceStorageUnavailable(t *testing.T) {
	unavailable := errors.Join(gateway.ErrUnavailable, errors.New("dial tcp: timeout"))
	svc := NewConcessionService(failingConcessionStore{err: unavailable}, nil, nil)

	_, err := svc.Submit(context.Background(), "stu-1", validDraft())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorageUnavailable))
	assert.True(t, appErrors.Retryable(err))

	_, err = svc.Decide(context.Background(), "app-1", models.DecisionApproved, nil, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrStorageUnavailable))
}

func TestConcessionServiceAttachDocument(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)

	updated, err := f.svc.AttachDocument(ctx, app.ID, models.SlotAadhar, "aadhar/stu-1_1_aa.pdf", "stu-1")
	require.NoError(t, err)
	require.NotNil(t, updated.AadharURL)
	assert.Equal(t, "aadhar/stu-1_1_aa.pdf", *updated.AadharURL)
	assert.Equal(t, models.Completeness{Uploaded: 1, Total: 3}, Completeness(updated))

	updated, err = f.svc.AttachDocument(ctx, app.ID, models.SlotAadhar, "aadhar/stu-1_2_bb.pdf", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "aadhar/stu-1_2_bb.pdf", *updated.AadharURL)
	assert.Equal(t, 1, Completeness(updated).Uploaded)
	assert.Equal(t, models.AuditActionAttach, f.audit.entries[len(f.audit.entries)-1].Action)

	_, err = f.svc.Decide(ctx, app.ID, models.DecisionRejected, nil, "admin-1")
	require.NoError(t, err)
	_, err = f.svc.AttachDocument(ctx, app.ID, models.SlotIDCard, "id-cards/late.png", "stu-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = f.svc.AttachDocument(ctx, "missing", models.SlotIDCard, "id-cards/x.png", "stu-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.AttachDocument(ctx, app.ID, "passport", "x/y.png", "stu-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

// pausingStore holds the first two reads until both have happened, so two callers act on
// the same snapshot.
type pausingStore struct {
	*repository.ConcessionRepository
	reads   atomic.Int32
	arrived sync.WaitGroup
}

func newPausingStore(repo *repository.ConcessionRepository) *pausingStore {
	p := &pausingStore{ConcessionRepository: repo}
	p.arrived.Add(2)
	return p
}

func (p *pausingStore) FindByID(ctx context.Context, id string) (*models.ConcessionApplication, error) {
	app, err := p.ConcessionRepository.FindByID(ctx, id)
	if p.reads.Add(1) <= 2 {
		p.arrived.Done()
		p.arrived.Wait()
	}
	return app, err
}

func TestConcessionServiceConcurrentExtendsDoNotLoseUpdates(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	app, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	dates := &models.PassDates{IssueDate: models.MustDate("2024-06-02"), ExpiryDate: models.MustDate("2024-07-01")}
	_, err = f.svc.Decide(ctx, app.ID, models.DecisionApproved, dates, "admin-1")
	require.NoError(t, err)

	store := newPausingStore(f.repo)
	svc := NewConcessionService(store, nil, nil, WithConcessionClock(func() time.Time { return *f.clock }))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ExtendValidity(ctx, app.ID, 3, "admin-1")
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition), err.Error())
		}
	}
	require.Equal(t, 1, failed)

	stored, err := f.repo.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 10, 1, 23, 59, 59, 999999000, time.UTC).Equal(*stored.ValidUntil))

	retried, err := svc.ExtendValidity(ctx, app.ID, 3, "admin-1")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 1, 1, 23, 59, 59, 999999000, time.UTC).Equal(*retried.ValidUntil))
}

func TestConcessionServiceSubmitRenewalRequiresExpiredPass(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	prior, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, prior.ID, models.DecisionApproved, &models.PassDates{IssueDate: models.MustDate("2024-01-05")}, "admin-1")
	require.NoError(t, err)

	draft := validDraft()
	draft.SupersedesID = &prior.ID
	_, err = f.svc.Submit(ctx, "stu-1", draft)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	// still valid during the last day of a pass expiring 2024-02-04
	*f.clock = time.Date(2024, 2, 4, 23, 0, 0, 0, time.UTC)
	_, err = f.svc.Submit(ctx, "stu-1", draft)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	*f.clock = time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	renewal, err := f.svc.Submit(ctx, "stu-1", draft)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, *renewal.SupersedesID)
}

func TestConcessionServiceSubmitRenewalOnlyOnce(t *testing.T) {
	f := newConcessionFixture(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	prior, err := f.svc.Submit(ctx, "stu-1", validDraft())
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, prior.ID, models.DecisionApproved, &models.PassDates{IssueDate: models.MustDate("2024-01-05")}, "admin-1")
	require.NoError(t, err)
	*f.clock = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	draft := validDraft()
	draft.SupersedesID = &prior.ID
	first, err := f.svc.Submit(ctx, "stu-1", draft)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "stu-1", draft)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.Decide(ctx, first.ID, models.DecisionRejected, nil, "admin-1")
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, "stu-1", draft)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, *second.SupersedesID)
}
