// Package core implements the nestq query/command builder: immutable table
// contexts, relationship trees, WHERE expression trees, command compilation,
// and flat-row to nested-record reconstruction.
package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Column describes one table column and the alias it is selected under.
type Column struct {
	Name          string
	Alias         string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       any
}

// Schema holds a table's columns in declaration order.
type Schema struct {
	byName map[string]*Column
	order  []string
}

// NewSchema builds a schema from described columns.
// A blank Alias defaults to the column name (the root-table alias policy).
func NewSchema(cols []Column) *Schema {
	s := &Schema{byName: make(map[string]*Column, len(cols))}
	for i := range cols {
		c := cols[i]
		if c.Alias == "" {
			c.Alias = c.Name
		}
		if _, ok := s.byName[c.Name]; ok {
			continue
		}
		s.byName[c.Name] = &c
		s.order = append(s.order, c.Name)
	}
	return s
}

// Column returns the descriptor for name.
func (s *Schema) Column(name string) (*Column, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Columns returns all descriptors in declaration order.
func (s *Schema) Columns() []*Column {
	cols := make([]*Column, 0, len(s.order))
	for _, name := range s.order {
		cols = append(cols, s.byName[name])
	}
	return cols
}

// PrimaryKey returns the first primary-key column, or nil if the table has none.
func (s *Schema) PrimaryKey() *Column {
	for _, name := range s.order {
		if c := s.byName[name]; c.PrimaryKey {
			return c
		}
	}
	return nil
}

// Identity returns the auto-increment primary-key column, or nil.
func (s *Schema) Identity() *Column {
	for _, name := range s.order {
		if c := s.byName[name]; c.AutoIncrement {
			return c
		}
	}
	return nil
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.order)
}

// withNamespace returns a copy whose aliases are prefixed with ns + "_".
// This is the namespacing that keeps joined columns of arbitrarily nested
// relationships from colliding.
func (s *Schema) withNamespace(ns string) *Schema {
	out := &Schema{
		byName: make(map[string]*Column, len(s.byName)),
		order:  append([]string(nil), s.order...),
	}
	for _, name := range s.order {
		c := *s.byName[name]
		c.Alias = ns + "_" + c.Name
		out.byName[name] = &c
	}
	return out
}

// loader resolves table schemas in the background. One loader is shared by an
// entire context lineage: forks reuse the parent's loader, so a fork is never
// ready before its parent, and each table is described at most once per
// lineage. Describes for distinct tables run concurrently.
type loader struct {
	exec Executor
	grp  errgroup.Group

	mu        sync.Mutex
	requested map[string]bool
	schemas   map[string]*Schema
}

func newLoader(exec Executor) *loader {
	return &loader{
		exec:      exec,
		requested: make(map[string]bool),
		schemas:   make(map[string]*Schema),
	}
}

// request schedules a describe for table unless one is already in flight.
func (l *loader) request(table string) {
	l.mu.Lock()
	if l.requested[table] {
		l.mu.Unlock()
		return
	}
	l.requested[table] = true
	l.mu.Unlock()

	l.grp.Go(func() error {
		cols, err := l.exec.Describe(context.Background(), table)
		if err != nil {
			return fmt.Errorf("nestq: describe %q: %w", table, err)
		}
		l.mu.Lock()
		l.schemas[table] = NewSchema(cols)
		l.mu.Unlock()
		return nil
	})
}

// wait blocks until every scheduled describe has settled and returns the
// first error, if any. Terminal operations call this before compiling.
func (l *loader) wait() error {
	return l.grp.Wait()
}

// schema returns the resolved schema for table. Valid only after wait.
func (l *loader) schema(table string) (*Schema, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.schemas[table]
	return s, ok
}
