package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
)

const concessionTable = "concession_applications"

// ConcessionRepository persists concession applications through the storage gateway.
type ConcessionRepository struct {
	gw gateway.Gateway
}

// NewConcessionRepository constructs the repository.
func NewConcessionRepository(gw gateway.Gateway) *ConcessionRepository {
	return &ConcessionRepository{gw: gw}
}

// Create inserts a new application, assigning an id and timestamps when absent.
func (r *ConcessionRepository) Create(ctx context.Context, app *models.ConcessionApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.CreatedAt
	}
	if _, err := r.gw.Insert(ctx, concessionTable, applicationRow(app)); err != nil {
		return fmt.Errorf("create concession application: %w", err)
	}
	return nil
}

// FindByID returns sql.ErrNoRows when the application does not exist.
func (r *ConcessionRepository) FindByID(ctx context.Context, id string) (*models.ConcessionApplication, error) {
	apps, err := r.query(ctx, gateway.Query{Match: gateway.Match{"id": id}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find concession application: %w", err)
	}
	if len(apps) == 0 {
		return nil, sql.ErrNoRows
	}
	return &apps[0], nil
}

// ListByStudent returns a student's applications, newest first.
func (r *ConcessionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ConcessionApplication, error) {
	apps, err := r.query(ctx, gateway.Query{Match: gateway.Match{"student_id": studentID}, OrderBy: "created_at", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list student applications: %w", err)
	}
	return apps, nil
}

// List returns every application, optionally restricted to one status, newest first.
func (r *ConcessionRepository) List(ctx context.Context, status models.ApplicationStatus) ([]models.ConcessionApplication, error) {
	q := gateway.Query{OrderBy: "created_at", Desc: true}
	if status != "" {
		q.Match = gateway.Match{"status": string(status)}
	}
	apps, err := r.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// ListBySupersedes returns the applications that renew priorID, newest first.
func (r *ConcessionRepository) ListBySupersedes(ctx context.Context, priorID string) ([]models.ConcessionApplication, error) {
	apps, err := r.query(ctx, gateway.Query{Match: gateway.Match{"supersedes_id": priorID}, OrderBy: "created_at", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list renewals: %w", err)
	}
	return apps, nil
}

// UpdateWhereStatus patches the application only while it is in the expected status and
// reports the number of rows changed. Zero means the row is missing or has moved on.
func (r *ConcessionRepository) UpdateWhereStatus(ctx context.Context, id string, expected models.ApplicationStatus, patch gateway.Row) (int64, error) {
	return r.UpdateWhere(ctx, id, gateway.Match{"status": string(expected)}, patch)
}

// UpdateWhere patches the application only while every condition in match still holds.
func (r *ConcessionRepository) UpdateWhere(ctx context.Context, id string, match gateway.Match, patch gateway.Row) (int64, error) {
	if _, ok := patch["updated_at"]; !ok {
		patch["updated_at"] = time.Now().UTC()
	}
	conditions := gateway.Match{"id": id}
	for column, value := range match {
		conditions[column] = value
	}
	affected, err := r.gw.Update(ctx, concessionTable, conditions, patch)
	if err != nil {
		return 0, fmt.Errorf("update concession application: %w", err)
	}
	return affected, nil
}

func (r *ConcessionRepository) query(ctx context.Context, q gateway.Query) ([]models.ConcessionApplication, error) {
	var apps []models.ConcessionApplication
	if err := r.gw.Query(ctx, concessionTable, q, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func applicationRow(app *models.ConcessionApplication) gateway.Row {
	return gateway.Row{
		"id":                   app.ID,
		"student_id":           app.StudentID,
		"student_name":         app.StudentName,
		"year":                 string(app.Year),
		"branch":               string(app.Branch),
		"category":             string(app.Category),
		"date_of_birth":        app.DateOfBirth,
		"age":                  app.Age,
		"from_station":         app.FromStation,
		"to_station":           app.ToStation,
		"class_type":           string(app.ClassType),
		"railway_type":         string(app.Railway),
		"pass_type":            string(app.PassType),
		"concession_form_no":   app.ConcessionFormNo,
		"season_ticket_no":     app.SeasonTicketNo,
		"previous_pass_date":   app.PreviousPassDate,
		"previous_pass_expiry": app.PreviousPassExpiry,
		"id_card_url":          app.IDCardURL,
		"aadhar_url":           app.AadharURL,
		"fee_receipt_url":      app.FeeReceiptURL,
		"status":               string(app.Status),
		"valid_from":           app.ValidFrom,
		"valid_until":          app.ValidUntil,
		"supersedes_id":        app.SupersedesID,
		"decided_by":           app.DecidedBy,
		"decided_at":           app.DecidedAt,
		"created_at":           app.CreatedAt,
		"updated_at":           app.UpdatedAt,
	}
}
