// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting, placeholders, and
// table introspection.
package dialects

// ColumnInfo describes a single table column as reported by the database.
type ColumnInfo struct {
	Name          string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       any
}

// Dialect defines database-specific behaviors.
type Dialect interface {
	// QuoteTable quotes a table identifier.
	QuoteTable(string) string
	// QuoteColumn quotes a column identifier.
	QuoteColumn(string) string
	// Placeholder returns the positional placeholder for 1-based index i.
	Placeholder(i int) string
	// DescribeSQL returns the introspection query for a table.
	DescribeSQL(table string) string
	// DescribeColumn maps one row of the introspection result to a ColumnInfo.
	// Returns false if the row does not describe a column.
	DescribeColumn(row map[string]any) (ColumnInfo, bool)
	// InsertedIDs expands the driver's single generated id into the full
	// sequential id range for an n-row insert. Returns nil when the driver
	// cannot report generated ids.
	InsertedIDs(id int64, n int64) []int64
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name.
func GetDialect(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

// rowString extracts a string-typed field from an introspection row.
// Drivers commonly return []byte for text columns.
func rowString(row map[string]any, key string) (string, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// rowInt extracts an integer-typed field from an introspection row.
func rowInt(row map[string]any, key string) (int64, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	}
	return 0, false
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var out int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		out = out*10 + int64(r-'0')
	}
	return out, true
}
