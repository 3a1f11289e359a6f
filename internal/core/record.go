package core

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Record is one table row as a map of column name (or alias) to value.
// Reconstructed relationship data appears under the relationship name as a
// nested Record (1:1) or []Record (1:n).
type Record map[string]any

// String returns the value for key as a string.
// Returns "" when the key is absent or NULL.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprintf("%v", v)
}

// Int returns the value for key as an int64.
// Returns 0 when the key is absent, NULL, or not numeric.
func (r Record) Int(key string) int64 {
	switch n := r[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// Float returns the value for key as a float64.
func (r Record) Float(key string) float64 {
	switch n := r[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// IsNull reports whether the value for key is NULL or absent.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	return !ok || v == nil
}

// Has reports whether the key exists (regardless of NULL status).
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys returns all column names in the record, sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns the nested 1:n relationship rows stored under key.
func (r Record) Records(key string) []Record {
	if v, ok := r[key].([]Record); ok {
		return v
	}
	return nil
}

// Nested returns the nested 1:1 relationship row stored under key.
func (r Record) Nested(key string) Record {
	if v, ok := r[key].(Record); ok {
		return v
	}
	return nil
}

// scalarValue reports whether v can be bound as a column value.
// Maps, slices, and non-time structs carry relationship data, not column
// values, and are skipped by insert compilation.
func scalarValue(v any) bool {
	switch v.(type) {
	case nil, bool, string, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return false
	default:
		return true
	}
}
