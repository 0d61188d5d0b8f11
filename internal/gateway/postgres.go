package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Postgres implements Gateway on top of sqlx. Statements are written with `?`
// placeholders and rebound for the connected driver.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open sqlx handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Query selects rows into dest, a pointer to a slice of db-tagged structs.
func (g *Postgres) Query(ctx context.Context, table string, q Query, dest interface{}) error {
	if err := validateQuery(table, q); err != nil {
		return err
	}
	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ", ")
	}
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("SELECT %s FROM %s", columns, table))
	where, args := whereClause(q.Match)
	builder.WriteString(where)
	if q.OrderBy != "" {
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		builder.WriteString(fmt.Sprintf(" ORDER BY %s %s", q.OrderBy, direction))
	}
	if q.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	if err := g.db.SelectContext(ctx, dest, g.db.Rebind(builder.String()), args...); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// Insert writes a single row and returns its id.
func (g *Postgres) Insert(ctx context.Context, table string, row Row) (string, error) {
	id, err := rowID(row)
	if err != nil {
		return "", err
	}
	columns := sortedKeys(row)
	if err := checkIdentifiers(append([]string{table}, columns...)...); err != nil {
		return "", err
	}
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		placeholders[i] = "?"
		args[i] = row[column]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := g.db.ExecContext(ctx, g.db.Rebind(query), args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return "", fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		}
		return "", fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// Update applies patch to every row satisfying match and reports how many rows changed.
func (g *Postgres) Update(ctx context.Context, table string, match Match, patch Row) (int64, error) {
	if len(patch) == 0 {
		return 0, errors.New("gateway: empty patch")
	}
	if len(match) == 0 {
		return 0, errors.New("gateway: update without conditions")
	}
	columns := sortedKeys(patch)
	if err := checkIdentifiers(append([]string{table}, columns...)...); err != nil {
		return 0, err
	}
	if err := checkIdentifiers(sortedKeys(match)...); err != nil {
		return 0, err
	}
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+len(match))
	for i, column := range columns {
		sets[i] = column + " = ?"
		args = append(args, patch[column])
	}
	where, whereArgs := whereClause(match)
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where)
	result, err := g.db.ExecContext(ctx, g.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check %s update rows: %w", table, err)
	}
	return rows, nil
}

func whereClause(match Match) (string, []interface{}) {
	if len(match) == 0 {
		return "", nil
	}
	keys := sortedKeys(match)
	conditions := make([]string, len(keys))
	args := make([]interface{}, 0, len(keys))
	for i, key := range keys {
		if isNull(match[key]) {
			conditions[i] = key + " IS NULL"
			continue
		}
		conditions[i] = key + " = ?"
		args = append(args, match[key])
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
