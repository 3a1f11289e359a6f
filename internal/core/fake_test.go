package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// executed captures one command the fake received.
type executed struct {
	sql  string
	args []any
}

// fakeExec is an in-memory Executor with canned schemas and rows. Quoting
// follows MySQL so expected SQL in tests reads the same across cases.
type fakeExec struct {
	mu       sync.Mutex
	schemas  map[string][]Column
	rows     []Record
	insert   InsertResult
	affected int64
	failWith error
	commands []executed
}

// newFakeExec returns a fake seeded with a music-catalog schema.
func newFakeExec() *fakeExec {
	return &fakeExec{
		schemas: map[string][]Column{
			"Artist": {
				{Name: "ArtistId", PrimaryKey: true, AutoIncrement: true},
				{Name: "Name", Nullable: true},
			},
			"Album": {
				{Name: "AlbumId", PrimaryKey: true, AutoIncrement: true},
				{Name: "Title"},
				{Name: "ArtistId"},
			},
			"Track": {
				{Name: "TrackId", PrimaryKey: true, AutoIncrement: true},
				{Name: "Name"},
				{Name: "AlbumId", Nullable: true},
				{Name: "Composer", Nullable: true},
				{Name: "Bytes", Nullable: true},
			},
			"Genre": {
				{Name: "GenreId", PrimaryKey: true},
				{Name: "Name", Nullable: true},
			},
			"Tag": {
				{Name: "Label"},
				{Name: "TrackId"},
			},
		},
	}
}

func (f *fakeExec) record(sqlText string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, executed{sql: sqlText, args: args})
}

func (f *fakeExec) last() executed {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return executed{}
	}
	return f.commands[len(f.commands)-1]
}

func (f *fakeExec) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

func (f *fakeExec) Query(_ context.Context, sqlText string, args []any) ([]Record, error) {
	f.record(sqlText, args)
	return f.rows, f.failWith
}

func (f *fakeExec) Count(_ context.Context, sqlText string, args []any) (int64, error) {
	f.record(sqlText, args)
	return f.affected, f.failWith
}

func (f *fakeExec) Insert(_ context.Context, sqlText string, args []any) (InsertResult, error) {
	f.record(sqlText, args)
	return f.insert, f.failWith
}

func (f *fakeExec) Update(_ context.Context, sqlText string, args []any) (int64, error) {
	f.record(sqlText, args)
	return f.affected, f.failWith
}

func (f *fakeExec) Delete(_ context.Context, sqlText string, args []any) (int64, error) {
	f.record(sqlText, args)
	return f.affected, f.failWith
}

func (f *fakeExec) Describe(_ context.Context, table string) ([]Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cols, ok := f.schemas[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return cols, nil
}

func (f *fakeExec) EscapeTable(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (f *fakeExec) EscapeColumn(name string) string {
	return f.EscapeTable(name)
}

var _ Executor = (*fakeExec)(nil)
