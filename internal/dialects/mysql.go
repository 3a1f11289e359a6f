package dialects

import (
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// QuoteTable quotes a MySQL table identifier using backticks.
func (d *MySQLDialect) QuoteTable(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteColumn quotes a MySQL column identifier using backticks.
func (d *MySQLDialect) QuoteColumn(s string) string {
	return d.QuoteTable(s)
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// DescribeSQL returns the SHOW COLUMNS introspection query.
func (d *MySQLDialect) DescribeSQL(table string) string {
	return "SHOW COLUMNS FROM " + d.QuoteTable(table)
}

// DescribeColumn maps a SHOW COLUMNS row (Field, Type, Null, Key, Default, Extra).
func (d *MySQLDialect) DescribeColumn(row map[string]any) (ColumnInfo, bool) {
	name, ok := rowString(row, "Field")
	if !ok {
		return ColumnInfo{}, false
	}

	null, _ := rowString(row, "Null")
	key, _ := rowString(row, "Key")
	extra, _ := rowString(row, "Extra")

	return ColumnInfo{
		Name:          name,
		Nullable:      strings.EqualFold(null, "YES"),
		PrimaryKey:    strings.EqualFold(key, "PRI"),
		AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
		Default:       row["Default"],
	}, true
}

// InsertedIDs expands LastInsertId for multi-row inserts.
// MySQL reports the FIRST generated id of the batch.
func (d *MySQLDialect) InsertedIDs(id int64, n int64) []int64 {
	if id <= 0 || n <= 0 {
		return nil
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = id + int64(i)
	}
	return ids
}
