package dialects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "sqlite", "sqlite3"} {
		_, ok := GetDialect(name)
		assert.True(t, ok, name)
	}
	_, ok := GetDialect("oracle")
	assert.False(t, ok)
}

func TestQuoting(t *testing.T) {
	my, _ := GetDialect("mysql")
	pg, _ := GetDialect("postgres")
	lite, _ := GetDialect("sqlite")

	assert.Equal(t, "`Track`", my.QuoteTable("Track"))
	assert.Equal(t, "`we``ird`", my.QuoteColumn("we`ird"))
	assert.Equal(t, `"Track"`, pg.QuoteTable("Track"))
	assert.Equal(t, `"we""ird"`, pg.QuoteColumn(`we"ird`))
	assert.Equal(t, `"Track"`, lite.QuoteTable("Track"))
}

func TestPlaceholders(t *testing.T) {
	my, _ := GetDialect("mysql")
	pg, _ := GetDialect("postgres")

	assert.Equal(t, "?", my.Placeholder(3))
	assert.Equal(t, "$1", pg.Placeholder(1))
	assert.Equal(t, "$12", pg.Placeholder(12))
}

func TestMySQLDescribeColumn(t *testing.T) {
	d := &MySQLDialect{}

	info, ok := d.DescribeColumn(map[string]any{
		"Field": "TrackId", "Type": "int", "Null": "NO", "Key": "PRI", "Extra": "auto_increment",
	})
	require.True(t, ok)
	assert.Equal(t, "TrackId", info.Name)
	assert.True(t, info.PrimaryKey)
	assert.True(t, info.AutoIncrement)
	assert.False(t, info.Nullable)

	info, ok = d.DescribeColumn(map[string]any{
		"Field": "Composer", "Type": "varchar(220)", "Null": "YES", "Key": "", "Extra": "",
	})
	require.True(t, ok)
	assert.True(t, info.Nullable)
	assert.False(t, info.AutoIncrement)

	_, ok = d.DescribeColumn(map[string]any{"Type": "int"})
	assert.False(t, ok)
}

func TestSQLiteDescribeColumn(t *testing.T) {
	d := &SQLiteDialect{}

	info, ok := d.DescribeColumn(map[string]any{
		"name": "TrackId", "type": "INTEGER", "notnull": int64(0), "pk": int64(1),
	})
	require.True(t, ok)
	assert.True(t, info.PrimaryKey)
	assert.True(t, info.AutoIncrement, "INTEGER primary key aliases the rowid")

	info, ok = d.DescribeColumn(map[string]any{
		"name": "Code", "type": "TEXT", "notnull": int64(1), "pk": int64(1),
	})
	require.True(t, ok)
	assert.True(t, info.PrimaryKey)
	assert.False(t, info.AutoIncrement)
}

func TestPostgresDescribeColumn(t *testing.T) {
	d := &PostgresDialect{}

	info, ok := d.DescribeColumn(map[string]any{
		"column_name": "id", "is_nullable": "NO",
		"column_default": "nextval('t_id_seq'::regclass)", "is_primary": true,
	})
	require.True(t, ok)
	assert.True(t, info.PrimaryKey)
	assert.True(t, info.AutoIncrement)
	assert.False(t, info.Nullable)
}

func TestInsertedIDs(t *testing.T) {
	my, _ := GetDialect("mysql")
	lite, _ := GetDialect("sqlite")
	pg, _ := GetDialect("postgres")

	// MySQL reports the first id of the batch, SQLite the last.
	assert.Equal(t, []int64{7, 8, 9}, my.InsertedIDs(7, 3))
	assert.Equal(t, []int64{7, 8, 9}, lite.InsertedIDs(9, 3))
	assert.Nil(t, pg.InsertedIDs(9, 3))

	assert.Nil(t, my.InsertedIDs(0, 3))
	assert.Nil(t, lite.InsertedIDs(2, 3))
}
