package dialects

import (
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// QuoteTable quotes a SQLite table identifier using double quotes.
func (d *SQLiteDialect) QuoteTable(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteColumn quotes a SQLite column identifier using double quotes.
func (d *SQLiteDialect) QuoteColumn(s string) string {
	return d.QuoteTable(s)
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// DescribeSQL returns the PRAGMA table_info introspection query.
func (d *SQLiteDialect) DescribeSQL(table string) string {
	return "PRAGMA table_info(" + d.QuoteTable(table) + ")"
}

// DescribeColumn maps a table_info row (cid, name, type, notnull, dflt_value, pk).
// An INTEGER primary key column aliases the rowid and auto-increments.
func (d *SQLiteDialect) DescribeColumn(row map[string]any) (ColumnInfo, bool) {
	name, ok := rowString(row, "name")
	if !ok {
		return ColumnInfo{}, false
	}

	typ, _ := rowString(row, "type")
	notnull, _ := rowInt(row, "notnull")
	pk, _ := rowInt(row, "pk")
	isPK := pk > 0

	return ColumnInfo{
		Name:          name,
		Nullable:      notnull == 0 && !isPK,
		PrimaryKey:    isPK,
		AutoIncrement: isPK && strings.EqualFold(typ, "INTEGER"),
		Default:       row["dflt_value"],
	}, true
}

// InsertedIDs expands LastInsertId for multi-row inserts.
// SQLite reports the LAST generated rowid of the batch.
func (d *SQLiteDialect) InsertedIDs(id int64, n int64) []int64 {
	if id <= 0 || n <= 0 || id < n {
		return nil
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = id - n + 1 + int64(i)
	}
	return ids
}
