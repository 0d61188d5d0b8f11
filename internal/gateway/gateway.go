// Package gateway is the narrow persistence contract the concession core depends on:
// query, insert and conditional update over named tables.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
)

var (
	// ErrUnavailable marks failures where the backing store could not complete the call in time.
	ErrUnavailable = errors.New("gateway: storage unavailable")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("gateway: duplicate key")
)

// Row maps column names to values for inserts and patches.
type Row map[string]interface{}

// Match holds equality conditions that are AND'ed together. A nil value, or a nil pointer,
// matches NULL.
type Match map[string]interface{}

// Query describes a read against a single table.
type Query struct {
	Columns []string
	Match   Match
	OrderBy string
	Desc    bool
	Limit   int
}

// Gateway is implemented by every persistence backend.
type Gateway interface {
	Query(ctx context.Context, table string, q Query, dest interface{}) error
	Insert(ctx context.Context, table string, row Row) (string, error)
	Update(ctx context.Context, table string, match Match, patch Row) (int64, error)
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdentifiers(names ...string) error {
	for _, name := range names {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("gateway: invalid identifier %q", name)
		}
	}
	return nil
}

func sortedKeys[M ~map[string]interface{}](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rowID(row Row) (string, error) {
	id, ok := row["id"].(string)
	if !ok || id == "" {
		return "", errors.New("gateway: insert requires a string id column")
	}
	return id, nil
}

func validateQuery(table string, q Query) error {
	if err := checkIdentifiers(table); err != nil {
		return err
	}
	if err := checkIdentifiers(q.Columns...); err != nil {
		return err
	}
	if err := checkIdentifiers(sortedKeys(q.Match)...); err != nil {
		return err
	}
	if q.OrderBy != "" {
		return checkIdentifiers(q.OrderBy)
	}
	return nil
}

func isNull(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
