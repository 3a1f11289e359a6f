package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackSelect = "SELECT `Track`.`TrackId` AS `TrackId`, `Track`.`Name` AS `Name`, " +
	"`Track`.`AlbumId` AS `AlbumId`, `Track`.`Composer` AS `Composer`, " +
	"`Track`.`Bytes` AS `Bytes` FROM `Track`"

func compileTrack(t *testing.T, build func(*Table) *Table) (string, []any) {
	t.Helper()
	f := newFakeExec()
	tb, err := New(f, "Track")
	require.NoError(t, err)
	tb = build(tb)
	require.NoError(t, tb.ready())
	cmd, err := tb.compileSelect()
	require.NoError(t, err)
	return cmd.SQL, cmd.Args
}

func TestWhereConditions(t *testing.T) {
	tests := []struct {
		name      string
		build     func(*Table) *Table
		wantWhere string
		wantArgs  []any
	}{
		{
			name: "equality",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("Composer").Equals("AC/DC") })
			},
			wantWhere: "`Track`.`Composer` = ?",
			wantArgs:  []any{"AC/DC"},
		},
		{
			name: "inequality",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("Bytes").NotEquals(0) })
			},
			wantWhere: "`Track`.`Bytes` <> ?",
			wantArgs:  []any{0},
		},
		{
			name: "comparison chain with and",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain {
					return r.Col("Bytes").GreaterThan(1000).
						And(func(r *Row) *Chain { return r.Col("Bytes").LessThanOrEqualTo(5000) })
				})
			},
			wantWhere: "(`Track`.`Bytes` > ? AND `Track`.`Bytes` <= ?)",
			wantArgs:  []any{1000, 5000},
		},
		{
			name: "or group nested under and",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain {
					return r.Col("Composer").Equals("AC/DC").
						And(func(r *Row) *Chain {
							return r.Col("Bytes").GreaterThan(7000000).
								Or(func(r *Row) *Chain { return r.Col("Name").Like("%Rock%") })
						})
				})
			},
			wantWhere: "(`Track`.`Composer` = ? AND (`Track`.`Bytes` > ? OR `Track`.`Name` LIKE ?))",
			wantArgs:  []any{"AC/DC", 7000000, "%Rock%"},
		},
		{
			name: "negation wraps in not",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("Composer").Not().Equals("AC/DC") })
			},
			wantWhere: "NOT (`Track`.`Composer` = ?)",
			wantArgs:  []any{"AC/DC"},
		},
		{
			name: "nil equals rewrites to is null",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("Composer").Equals(nil) })
			},
			wantWhere: "`Track`.`Composer` IS NULL",
			wantArgs:  nil,
		},
		{
			name: "nil not-equals rewrites to is not null",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("Composer").NotEquals(nil) })
			},
			wantWhere: "`Track`.`Composer` IS NOT NULL",
			wantArgs:  nil,
		},
		{
			name: "in list",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("TrackId").In(1, 2, 3) })
			},
			wantWhere: "`Track`.`TrackId` IN (?, ?, ?)",
			wantArgs:  []any{1, 2, 3},
		},
		{
			name: "empty in is always false",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("TrackId").In() })
			},
			wantWhere: "0=1",
			wantArgs:  nil,
		},
		{
			name: "contains escapes like wildcards",
			build: func(tb *Table) *Table {
				return tb.Where(func(r *Row) *Chain { return r.Col("Name").Contains("50% off_deal") })
			},
			wantWhere: "`Track`.`Name` LIKE ?",
			wantArgs:  []any{`%50\% off\_deal%`},
		},
		{
			name: "second where replaces the inherited filter",
			build: func(tb *Table) *Table {
				return tb.
					Where(func(r *Row) *Chain { return r.Col("Composer").Equals("AC/DC") }).
					Where(func(r *Row) *Chain {
						return r.Col("Bytes").GreaterThan(1).
							Or(func(r *Row) *Chain { return r.Col("Bytes").Equals(nil) })
					})
			},
			wantWhere: "(`Track`.`Bytes` > ? OR `Track`.`Bytes` IS NULL)",
			wantArgs:  []any{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := compileTrack(t, tt.build)
			assert.Equal(t, trackSelect+" WHERE "+tt.wantWhere, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

// Placeholder count must equal argument count no matter how the filter nests.
func TestWherePlaceholderArgParity(t *testing.T) {
	sql, args := compileTrack(t, func(tb *Table) *Table {
		return tb.Where(func(r *Row) *Chain {
			return r.Col("Composer").Equals("AC/DC").
				And(func(r *Row) *Chain {
					return r.Col("Bytes").In(1, 2, 3).
						Or(func(r *Row) *Chain { return r.Col("Name").Not().Equals("x") })
				}).
				And(func(r *Row) *Chain { return r.Col("AlbumId").NotEquals(nil) })
		})
	})
	assert.Equal(t, strings.Count(sql, "?"), len(args))
}

func TestWhereUnknownColumnFailsAtCompile(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Track")
	require.NoError(t, err)

	tb = tb.Where(func(r *Row) *Chain { return r.Col("NoSuchColumn").Equals(1) })
	require.NoError(t, tb.ready())

	_, err = tb.compileSelect()
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "NoSuchColumn")
}

func TestWhereUndeclaredRelationshipFails(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Track")
	require.NoError(t, err)

	tb = tb.Where(func(r *Row) *Chain { return r.Rel("Ghost").Col("Name").Equals("x") })
	err = tb.Err()
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "Ghost")
}

func TestWhereOnRelationshipRequiresInclude(t *testing.T) {
	_, tb := albumWithTracks(t)

	filtered := tb.Where(func(r *Row) *Chain {
		return r.Rel("Tracks").Col("Composer").Equals("AC/DC")
	})
	require.NoError(t, filtered.ready())

	_, err := filtered.compileSelect()
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "Tracks")

	// The same filter compiles once the relationship joins the query.
	joined := tb.Include("Tracks").End().Where(func(r *Row) *Chain {
		return r.Rel("Tracks").Col("Composer").Equals("AC/DC")
	})
	require.NoError(t, joined.ready())
	cmd, err := joined.compileSelect()
	require.NoError(t, err)
	assert.Contains(t, cmd.SQL, "`Tracks`.`Composer` = ?")
}

func TestWhereEmptyCallbackFails(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Track")
	require.NoError(t, err)

	tb = tb.Where(func(r *Row) *Chain { return &Chain{} })
	assert.Error(t, tb.Err())
}
