package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
)

const (
	studentTable = "students"
	adminTable   = "admins"
)

// AccountRepository stores student and administrator credentials.
type AccountRepository struct {
	gw gateway.Gateway
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(gw gateway.Gateway) *AccountRepository {
	return &AccountRepository{gw: gw}
}

// CreateStudent inserts a student account. Duplicate emails or roll numbers surface as gateway.ErrDuplicate.
func (r *AccountRepository) CreateStudent(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	student.Email = strings.ToLower(strings.TrimSpace(student.Email))
	row := gateway.Row{
		"id":            student.ID,
		"roll_number":   student.RollNumber,
		"name":          student.Name,
		"email":         student.Email,
		"password_hash": student.PasswordHash,
		"created_at":    student.CreatedAt,
	}
	if _, err := r.gw.Insert(ctx, studentTable, row); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// FindStudentByEmail looks a student up by normalised email.
func (r *AccountRepository) FindStudentByEmail(ctx context.Context, email string) (*models.Student, error) {
	return r.findStudent(ctx, gateway.Match{"email": strings.ToLower(strings.TrimSpace(email))})
}

// FindStudentByID looks a student up by primary key.
func (r *AccountRepository) FindStudentByID(ctx context.Context, id string) (*models.Student, error) {
	return r.findStudent(ctx, gateway.Match{"id": id})
}

// CreateAdmin inserts an administrator account.
func (r *AccountRepository) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	row := gateway.Row{
		"id":            admin.ID,
		"username":      admin.Username,
		"password_hash": admin.PasswordHash,
		"created_at":    admin.CreatedAt,
	}
	if _, err := r.gw.Insert(ctx, adminTable, row); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// FindAdminByUsername looks an administrator up by username.
func (r *AccountRepository) FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	return r.findAdmin(ctx, gateway.Match{"username": strings.TrimSpace(username)})
}

// FindAdminByID looks an administrator up by primary key.
func (r *AccountRepository) FindAdminByID(ctx context.Context, id string) (*models.Admin, error) {
	return r.findAdmin(ctx, gateway.Match{"id": id})
}

func (r *AccountRepository) findStudent(ctx context.Context, match gateway.Match) (*models.Student, error) {
	var students []models.Student
	if err := r.gw.Query(ctx, studentTable, gateway.Query{Match: match, Limit: 1}, &students); err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	if len(students) == 0 {
		return nil, sql.ErrNoRows
	}
	return &students[0], nil
}

func (r *AccountRepository) findAdmin(ctx context.Context, match gateway.Match) (*models.Admin, error) {
	var admins []models.Admin
	if err := r.gw.Query(ctx, adminTable, gateway.Query{Match: match, Limit: 1}, &admins); err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if len(admins) == 0 {
		return nil, sql.ErrNoRows
	}
	return &admins[0], nil
}
