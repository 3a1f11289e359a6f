package dialects

import (
	"fmt"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
}

// QuoteTable quotes a PostgreSQL table identifier using double quotes.
func (d *PostgresDialect) QuoteTable(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteColumn quotes a PostgreSQL column identifier using double quotes.
func (d *PostgresDialect) QuoteColumn(s string) string {
	return d.QuoteTable(s)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// DescribeSQL returns an information_schema introspection query.
// The table name is embedded as a string literal; it never contains user row
// data, only the configured table name.
func (d *PostgresDialect) DescribeSQL(table string) string {
	lit := "'" + strings.ReplaceAll(table, "'", "''") + "'"
	return `SELECT c.column_name, c.is_nullable, c.column_default,
       (pk.column_name IS NOT NULL) AS is_primary
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name
     AND tc.table_name = kcu.table_name
    WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = ` + lit + `
) pk ON pk.column_name = c.column_name
WHERE c.table_name = ` + lit + `
ORDER BY c.ordinal_position`
}

// DescribeColumn maps an information_schema row.
func (d *PostgresDialect) DescribeColumn(row map[string]any) (ColumnInfo, bool) {
	name, ok := rowString(row, "column_name")
	if !ok {
		return ColumnInfo{}, false
	}

	nullable, _ := rowString(row, "is_nullable")
	def, _ := rowString(row, "column_default")

	isPK := false
	switch v := row["is_primary"].(type) {
	case bool:
		isPK = v
	case int64:
		isPK = v != 0
	}

	return ColumnInfo{
		Name:          name,
		Nullable:      strings.EqualFold(nullable, "YES"),
		PrimaryKey:    isPK,
		AutoIncrement: strings.HasPrefix(def, "nextval("),
		Default:       row["column_default"],
	}, true
}

// InsertedIDs returns nil: lib/pq does not support LastInsertId, so generated
// identity values cannot be back-filled without a RETURNING clause.
func (d *PostgresDialect) InsertedIDs(_ int64, _ int64) []int64 {
	return nil
}
