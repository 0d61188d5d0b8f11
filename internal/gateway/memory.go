package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Gateway used for local development and tests. Rows are kept
// JSON-encoded so reads decode through the same path as the REST backend.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]map[string]json.RawMessage
	unique map[string][]string
}

// MemoryOption configures a Memory gateway.
type MemoryOption func(*Memory)

// WithUniqueColumns enforces single-column uniqueness on inserts into table.
func WithUniqueColumns(table string, columns ...string) MemoryOption {
	return func(m *Memory) {
		m.unique[table] = append(m.unique[table], columns...)
	}
}

// NewMemory returns an empty in-memory gateway.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		tables: make(map[string][]map[string]json.RawMessage),
		unique: make(map[string][]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Query returns matching rows, optionally ordered and limited.
func (m *Memory) Query(ctx context.Context, table string, q Query, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateQuery(table, q); err != nil {
		return err
	}
	match, err := encodeRow(Row(q.Match))
	if err != nil {
		return err
	}

	m.mu.RLock()
	selected := make([]map[string]json.RawMessage, 0)
	for _, row := range m.tables[table] {
		if rowMatches(row, match) {
			selected = append(selected, project(row, q.Columns))
		}
	}
	m.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(selected, func(i, j int) bool {
			less := compareRaw(selected[i][q.OrderBy], selected[j][q.OrderBy])
			if q.Desc {
				return less > 0
			}
			return less < 0
		})
	}
	if q.Limit > 0 && len(selected) > q.Limit {
		selected = selected[:q.Limit]
	}
	return decodeRows(selected, dest)
}

// Insert appends a row after checking unique columns.
func (m *Memory) Insert(ctx context.Context, table string, row Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := rowID(row)
	if err != nil {
		return "", err
	}
	if err := checkIdentifiers(append([]string{table}, sortedKeys(row)...)...); err != nil {
		return "", err
	}
	encoded, err := encodeRow(row)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	columns := append([]string{"id"}, m.unique[table]...)
	for _, existing := range m.tables[table] {
		for _, column := range columns {
			value, ok := encoded[column]
			if ok && !bytes.Equal(value, jsonNull) && bytes.Equal(existing[column], value) {
				return "", fmt.Errorf("%w: %s.%s", ErrDuplicate, table, column)
			}
		}
	}
	m.tables[table] = append(m.tables[table], encoded)
	return id, nil
}

// Update patches matching rows in place.
func (m *Memory) Update(ctx context.Context, table string, match Match, patch Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, errors.New("gateway: empty patch")
	}
	if len(match) == 0 {
		return 0, errors.New("gateway: update without conditions")
	}
	if err := checkIdentifiers(append([]string{table}, sortedKeys(patch)...)...); err != nil {
		return 0, err
	}
	encodedMatch, err := encodeRow(Row(match))
	if err != nil {
		return 0, err
	}
	encodedPatch, err := encodeRow(patch)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, row := range m.tables[table] {
		if !rowMatches(row, encodedMatch) {
			continue
		}
		for column, value := range encodedPatch {
			row[column] = value
		}
		affected++
	}
	return affected, nil
}

var jsonNull = []byte("null")

func rowMatches(row, match map[string]json.RawMessage) bool {
	for column, want := range match {
		got, ok := row[column]
		if bytes.Equal(want, jsonNull) {
			if ok && !bytes.Equal(got, jsonNull) {
				return false
			}
			continue
		}
		if !ok || !rawEqual(got, want) {
			return false
		}
	}
	return true
}

// rawEqual compares encoded values, treating timestamps that name the same instant as equal.
func rawEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var ta, tb time.Time
	if json.Unmarshal(a, &ta) == nil && json.Unmarshal(b, &tb) == nil {
		return ta.Equal(tb)
	}
	return false
}

func project(row map[string]json.RawMessage, columns []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(row))
	if len(columns) == 0 {
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	for _, column := range columns {
		if v, ok := row[column]; ok {
			out[column] = v
		}
	}
	return out
}

// compareRaw orders timestamps chronologically and everything else by encoded text.
func compareRaw(a, b json.RawMessage) int {
	var ta, tb time.Time
	if json.Unmarshal(a, &ta) == nil && json.Unmarshal(b, &tb) == nil {
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		default:
			return 0
		}
	}
	return bytes.Compare(a, b)
}
