package gateway

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// decodeRows fills dest, a pointer to a slice of structs (or struct pointers), from
// JSON-encoded rows keyed by column name. Columns are matched against `db` tags so the
// same models serve the SQL and REST backends.
func decodeRows(rows []map[string]json.RawMessage, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("gateway: dest must be a non-nil pointer to a slice, got %T", dest)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	structType := elemType
	if elemType.Kind() == reflect.Pointer {
		structType = elemType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("gateway: slice element must be a struct, got %s", elemType)
	}
	fields := columnFields(structType)

	out := reflect.MakeSlice(slice.Type(), 0, len(rows))
	for _, row := range rows {
		item := reflect.New(structType)
		for column, raw := range row {
			idx, ok := fields[column]
			if !ok {
				continue
			}
			target := item.Elem().Field(idx).Addr().Interface()
			if err := json.Unmarshal(raw, target); err != nil {
				return fmt.Errorf("gateway: decode column %s: %w", column, err)
			}
		}
		if elemType.Kind() == reflect.Pointer {
			out = reflect.Append(out, item)
		} else {
			out = reflect.Append(out, item.Elem())
		}
	}
	slice.Set(out)
	return nil
}

func columnFields(t reflect.Type) map[string]int {
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("db"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		fields[tag] = i
	}
	return fields
}

func encodeRow(row Row) (map[string]json.RawMessage, error) {
	encoded := make(map[string]json.RawMessage, len(row))
	for column, value := range row {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode column %s: %w", column, err)
		}
		encoded[column] = raw
	}
	return encoded, nil
}
