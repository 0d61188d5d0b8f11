package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

// monthlyPassDays is the fixed length of a Monthly pass.
const monthlyPassDays = 30

// AgeAt returns the number of whole years between dob and at.
func AgeAt(dob models.Date, at time.Time) int {
	at = at.UTC()
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// AddMonths moves t forward by months calendar months. When the target month is
// shorter, the day is clamped to its last day (31 Jan + 1 month = 29 Feb in a leap year).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DeriveExpiry computes the end of a pass issued on issue.
func DeriveExpiry(issue models.Date, pass models.PassType) models.Date {
	if pass == models.PassQuarterly {
		return models.NewDate(AddMonths(issue.Time, 3))
	}
	return models.NewDate(issue.AddDate(0, 0, monthlyPassDays))
}

// PassEnd is the last instant a pass expiring on expiry is valid: the end of that day, at
// the microsecond precision Postgres keeps.
func PassEnd(expiry models.Date) time.Time {
	return expiry.Time.AddDate(0, 0, 1).Add(-time.Microsecond)
}

// ExtendedValidity returns the new end of the validity window after adding months.
// The base is the current valid_until, or now when the window was never opened.
func ExtendedValidity(validUntil *time.Time, now time.Time, months int) time.Time {
	base := now.UTC()
	if validUntil != nil && !validUntil.IsZero() {
		base = validUntil.UTC()
	}
	return AddMonths(base, months)
}

// IsExpired reports whether the validity window closed before now.
func IsExpired(app *models.ConcessionApplication, now time.Time) bool {
	if app == nil || app.ValidUntil == nil {
		return false
	}
	return now.After(*app.ValidUntil)
}

// Completeness counts the filled evidence slots.
func Completeness(app *models.ConcessionApplication) models.Completeness {
	result := models.Completeness{Total: len(models.DocumentSlots)}
	for _, slot := range models.DocumentSlots {
		if ref := app.Document(slot); ref != nil && *ref != "" {
			result.Uploaded++
		}
	}
	return result
}

// CountByStatus buckets records by review state.
func CountByStatus(apps []models.ConcessionApplication) models.StatusCounts {
	counts := models.StatusCounts{Total: len(apps)}
	for i := range apps {
		switch apps[i].Status {
		case models.StatusPending:
			counts.Pending++
		case models.StatusApproved:
			counts.Approved++
		case models.StatusRejected:
			counts.Rejected++
		}
	}
	return counts
}

// GroupByBranch counts records per branch. Branches without records are absent.
func GroupByBranch(apps []models.ConcessionApplication) map[models.Branch]int {
	groups := make(map[models.Branch]int)
	for i := range apps {
		groups[apps[i].Branch]++
	}
	return groups
}

// FilterApplications keeps records satisfying every constraint in filter, preserving order.
// Search is a case-insensitive substring match over name, form number and both stations.
func FilterApplications(apps []models.ConcessionApplication, filter models.ApplicationFilter) []models.ConcessionApplication {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.ConcessionApplication, 0, len(apps))
	for i := range apps {
		app := &apps[i]
		if search != "" && !matchesSearch(app, search) {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.Branch != "" && app.Branch != filter.Branch {
			continue
		}
		if filter.Year != "" && app.Year != filter.Year {
			continue
		}
		if !matchesDocuments(app, filter.DocumentPresence) {
			continue
		}
		out = append(out, *app)
	}
	return out
}

func matchesSearch(app *models.ConcessionApplication, needle string) bool {
	for _, field := range []string{app.StudentName, app.ConcessionFormNo, app.FromStation, app.ToStation} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// withDocs means at least one slot is filled; withoutDocs means none are.
func matchesDocuments(app *models.ConcessionApplication, presence models.DocumentPresence) bool {
	switch presence {
	case models.DocumentsWith:
		return Completeness(app).Uploaded > 0
	case models.DocumentsWithout:
		return Completeness(app).Uploaded == 0
	default:
		return true
	}
}

func validateDraftFields(draft *models.ApplicationDraft, now time.Time) error {
	checks := []struct {
		field string
		ok    bool
	}{
		{"year", oneOf(draft.Year, models.AcademicYears)},
		{"branch", oneOf(draft.Branch, models.Branches)},
		{"category", oneOf(draft.Category, models.Categories)},
		{"class_type", oneOf(draft.ClassType, models.ClassTypes)},
		{"railway_type", oneOf(draft.Railway, models.Railways)},
		{"pass_type", oneOf(draft.PassType, models.PassTypes)},
	}
	for _, check := range checks {
		if !check.ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s has an unsupported value", check.field))
		}
	}
	required := []struct {
		field string
		value string
	}{
		{"student_name", draft.StudentName},
		{"from_station", draft.FromStation},
		{"to_station", draft.ToStation},
		{"concession_form_no", draft.ConcessionFormNo},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return appErrors.Clone(appErrors.ErrValidation, r.field+" is required")
		}
	}
	if draft.DateOfBirth.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "date_of_birth is required")
	}
	if draft.DateOfBirth.After(now) {
		return appErrors.Clone(appErrors.ErrValidation, "date_of_birth cannot be in the future")
	}
	return nil
}

func validatePassDates(dates *models.PassDates) error {
	if dates == nil {
		return nil
	}
	if dates.IssueDate.IsZero() && !dates.ExpiryDate.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "issue_date is required when expiry_date is set")
	}
	if !dates.ExpiryDate.IsZero() && dates.ExpiryDate.Before(dates.IssueDate.Time) {
		return appErrors.Clone(appErrors.ErrValidation, "expiry_date must not precede issue_date")
	}
	return nil
}

func oneOf[T comparable](value T, allowed []T) bool {
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}
