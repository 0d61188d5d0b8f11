package gateway

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

type statusRow struct {
	ID        string    `db:"id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func newPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgres(sqlx.NewDb(db, "postgres")), mock, func() { db.Close() }
}

func TestPostgresQueryBuildsOrderedSelect(t *testing.T) {
	gw, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "status", "created_at"}).
		AddRow("app-1", "pending", created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status, created_at FROM concession_applications WHERE status = $1 AND student_id = $2 ORDER BY created_at DESC LIMIT 5")).
		WithArgs("pending", "student-1").
		WillReturnRows(rows)

	var out []statusRow
	err := gw.Query(context.Background(), "concession_applications", Query{
		Columns: []string{"id", "status", "created_at"},
		Match:   Match{"student_id": "student-1", "status": "pending"},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   5,
	}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "app-1", out[0].ID)
	require.Equal(t, created, out[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertUsesSortedColumns(t *testing.T) {
	gw, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (email, id, name) VALUES ($1, $2, $3)")).
		WithArgs("a@college.edu", "stu-1", "Asha").
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := gw.Insert(context.Background(), "students", Row{"id": "stu-1", "name": "Asha", "email": "a@college.edu"})
	require.NoError(t, err)
	require.Equal(t, "stu-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertMapsUniqueViolation(t *testing.T) {
	gw, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_email_key"})

	_, err := gw.Insert(context.Background(), "students", Row{"id": "stu-1", "email": "a@college.edu"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicate))
}

func TestPostgresInsertRequiresID(t *testing.T) {
	gw, _, cleanup := newPostgresMock(t)
	defer cleanup()

	_, err := gw.Insert(context.Background(), "students", Row{"email": "a@college.edu"})
	require.Error(t, err)
}

func TestPostgresConditionalUpdate(t *testing.T) {
	gw, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE concession_applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs("approved", sqlmock.AnyArg(), "app-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE concession_applications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs("rejected", sqlmock.AnyArg(), "app-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	match := Match{"id": "app-1", "status": "pending"}
	affected, err := gw.Update(context.Background(), "concession_applications", match, Row{"status": "approved", "updated_at": time.Now()})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	affected, err = gw.Update(context.Background(), "concession_applications", match, Row{"status": "rejected", "updated_at": time.Now()})
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRejectsUnsafeIdentifiers(t *testing.T) {
	gw, _, cleanup := newPostgresMock(t)
	defer cleanup()

	var out []statusRow
	err := gw.Query(context.Background(), "students; DROP TABLE students", Query{}, &out)
	require.Error(t, err)

	_, err = gw.Update(context.Background(), "students", Match{"id": "1"}, Row{"name = 'x'--": "y"})
	require.Error(t, err)
}

func TestPostgresUpdateMatchesNull(t *testing.T) {
	gw, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	until := time.Date(2024, 4, 1, 23, 59, 59, 999999000, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE concession_applications SET valid_until = $1 WHERE id = $2 AND status = $3 AND valid_until IS NULL")).
		WithArgs(until, "app-1", "approved").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := gw.Update(context.Background(), "concession_applications",
		Match{"id": "app-1", "status": "approved", "valid_until": nil}, Row{"valid_until": until})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
