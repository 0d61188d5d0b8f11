package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
)

func newAccountRepoMock(t *testing.T) (*AccountRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewAccountRepository(gateway.NewPostgres(sqlxDB)), mock, func() {
		sqlxDB.Close()
	}
}

func TestAccountRepositoryFindStudentByEmail(t *testing.T) {
	repo, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "roll_number", "name", "email", "password_hash", "created_at"}).
		AddRow("stu-1", "22CE101", "Asha", "asha@college.edu", "$2a$hash", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM students WHERE email = $1 LIMIT 1")).
		WithArgs("asha@college.edu").
		WillReturnRows(rows)

	student, err := repo.FindStudentByEmail(context.Background(), "  Asha@College.edu ")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", student.ID)
	assert.Equal(t, "$2a$hash", student.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryFindAdminMissing(t *testing.T) {
	repo, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM admins WHERE username = $1 LIMIT 1")).
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}))

	_, err := repo.FindAdminByUsername(context.Background(), "root")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAccountRepositoryCreateStudentNormalisesEmail(t *testing.T) {
	repo, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (created_at, email, id, name, password_hash, roll_number) VALUES ($1, $2, $3, $4, $5, $6)")).
		WithArgs(sqlmock.AnyArg(), "asha@college.edu", sqlmock.AnyArg(), "Asha", "$2a$hash", "22CE101").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{RollNumber: "22CE101", Name: "Asha", Email: "Asha@College.edu", PasswordHash: "$2a$hash"}
	require.NoError(t, repo.CreateStudent(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryDuplicateStudent(t *testing.T) {
	repo := NewAccountRepository(gateway.NewMemory(gateway.WithUniqueColumns(studentTable, "email", "roll_number")))
	ctx := context.Background()

	require.NoError(t, repo.CreateStudent(ctx, &models.Student{RollNumber: "1", Name: "A", Email: "a@college.edu", PasswordHash: "h"}))
	err := repo.CreateStudent(ctx, &models.Student{RollNumber: "2", Name: "B", Email: "A@college.edu", PasswordHash: "h"})
	assert.ErrorIs(t, err, gateway.ErrDuplicate)
}
