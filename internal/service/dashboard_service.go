package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

const dashboardSummaryKey = "dash:concessions:summary"

type applicationSource interface {
	List(ctx context.Context, status models.ApplicationStatus) ([]models.ConcessionApplication, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the administrator overview of every application.
type DashboardService struct {
	source applicationSource
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Source applicationSource
	Cache  *CacheService
	Logger *zap.Logger
	Config DashboardServiceConfig
	Now    func() time.Time
}

// NewDashboardService constructs a dashboard service.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &DashboardService{source: params.Source, cache: params.Cache, logger: logger, now: now, cfg: cfg}
}

// Summary returns status counts, per-branch totals and evidence coverage. The boolean reports
// a cache hit.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	if cached, hit := s.trySummaryCache(ctx); hit {
		return cached, true, nil
	}

	apps, err := s.source.List(ctx, "")
	if err != nil {
		return nil, false, err
	}
	summary := s.composeSummary(apps)
	s.persistCache(ctx, dashboardSummaryKey, summary)
	return summary, false, nil
}

// Applications lists every application matching filter, newest first.
func (s *DashboardService) Applications(ctx context.Context, filter models.ApplicationFilter) ([]models.ConcessionApplication, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	apps, err := s.source.List(ctx, filter.Status)
	if err != nil {
		return nil, err
	}
	return FilterApplications(apps, filter), nil
}

func (s *DashboardService) composeSummary(apps []models.ConcessionApplication) *models.DashboardSummary {
	now := s.now().UTC()
	summary := &models.DashboardSummary{
		Counts:      CountByStatus(apps),
		ByBranch:    GroupByBranch(apps),
		GeneratedAt: now,
	}
	for i := range apps {
		app := &apps[i]
		if IsExpired(app, now) {
			summary.Expired++
		} else if app.ValidUntil != nil && (summary.NextExpiryAt == nil || app.ValidUntil.Before(*summary.NextExpiryAt)) {
			until := app.ValidUntil.UTC()
			summary.NextExpiryAt = &until
		}
		if app.Status != models.StatusPending {
			continue
		}
		if Completeness(app).Uploaded > 0 {
			summary.PendingWithDocs++
		} else {
			summary.PendingWithoutDocs++
		}
	}
	return summary
}

func (s *DashboardService) trySummaryCache(ctx context.Context) (*models.DashboardSummary, bool) {
	var cached models.DashboardSummary
	hit, err := s.cache.Get(ctx, dashboardSummaryKey, &cached)
	if err != nil || !hit {
		return nil, false
	}
	// a pass expired after the summary was built, so its expired count is out of date
	if cached.NextExpiryAt != nil && s.now().After(*cached.NextExpiryAt) {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func validateFilter(filter models.ApplicationFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "status has an unsupported value")
	}
	if filter.Branch != "" && !oneOf(filter.Branch, models.Branches) {
		return appErrors.Clone(appErrors.ErrValidation, "branch has an unsupported value")
	}
	if filter.Year != "" && !oneOf(filter.Year, models.AcademicYears) {
		return appErrors.Clone(appErrors.ErrValidation, "year has an unsupported value")
	}
	switch filter.DocumentPresence {
	case "", models.DocumentsAny, models.DocumentsWith, models.DocumentsWithout:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "documents has an unsupported value")
	}
	return nil
}
