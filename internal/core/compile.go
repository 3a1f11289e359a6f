package core

import (
	"sort"
	"strings"
)

// Operation identifies the kind of a compiled command.
type Operation string

// Command kinds reported in events and errors.
const (
	OpSelect   Operation = "SELECT"
	OpCount    Operation = "COUNT"
	OpInsert   Operation = "INSERT"
	OpUpdate   Operation = "UPDATE"
	OpDelete   Operation = "DELETE"
	OpDescribe Operation = "DESCRIBE"
)

// Command is a compiled SQL command with positional arguments ordered to
// match its ? placeholders left to right.
type Command struct {
	Table string
	Op    Operation
	SQL   string
	Args  []any
}

// quoter is the escaping surface the compiler needs from an Executor.
type quoter interface {
	EscapeTable(name string) string
	EscapeColumn(name string) string
}

// stmt accumulates SQL text and bound arguments in lockstep: every bound
// fragment carries its own arguments, so placeholder order can never drift
// from argument order.
type stmt struct {
	b    strings.Builder
	args []any
}

func (s *stmt) raw(fragment string) {
	s.b.WriteString(fragment)
}

func (s *stmt) bind(fragment string, args ...any) {
	s.b.WriteString(fragment)
	s.args = append(s.args, args...)
}

func (s *stmt) merge(o *stmt) {
	s.b.WriteString(o.b.String())
	s.args = append(s.args, o.args...)
}

func (s *stmt) empty() bool {
	return s.b.Len() == 0
}

func (s *stmt) sql() string {
	return s.b.String()
}

// aggregate is one aggregate projection of a grouped query.
type aggregate struct {
	fn     string // COUNT, AVG, MIN, MAX, SUM
	column string // empty for COUNT(*)
}

// alias returns the dynamic-bag alias the aggregate is selected under:
// $count_<col>, $avg_<col>, ... and $total for COUNT(*).
func (a aggregate) alias() string {
	if a.column == "" {
		return "$total"
	}
	return "$" + strings.ToLower(a.fn) + "_" + a.column
}

// SortKey is one ORDER BY entry.
type SortKey struct {
	Column string
	Desc   bool
}

// SelectedColumn is one entry of a projection override.
type SelectedColumn struct {
	Column string
	As     string // optional relabel; defaults to Column
}

// includedRelations returns the relationships active for the next query, in
// declaration order. Children are reached through their parent during join
// and selection walks, so only top-level nodes are returned.
func includedRelations(s *relSet) []*Relation {
	var out []*Relation
	for _, r := range s.all() {
		if r.included {
			out = append(out, r)
		}
	}
	return out
}

// anyIncludedMany reports whether any active relationship in the subtrees is 1:n.
func anyIncludedMany(rels []*Relation) bool {
	for _, r := range rels {
		if !r.included {
			continue
		}
		if r.Card == Many {
			return true
		}
		if anyIncludedMany(r.Children()) {
			return true
		}
	}
	return false
}

// relationSchema resolves the namespaced schema of a relationship target.
func (t *Table) relationSchema(r *Relation) (*Schema, error) {
	s, ok := t.loader.schema(r.Table)
	if !ok {
		return nil, buildErrf("schema", "no schema for table %q of relationship %q", r.Table, r.Name)
	}
	return s.withNamespace(r.Alias), nil
}

func (t *Table) mainSchema() (*Schema, error) {
	s, ok := t.loader.schema(t.name)
	if !ok {
		return nil, buildErrf("schema", "no schema for table %q", t.name)
	}
	return s, nil
}

// validate checks accumulated state against the resolved schemas.
func (t *Table) validate(main *Schema) error {
	if t.offset != nil && t.limit == nil {
		return ErrSkipWithoutTake
	}

	// Filter conditions may only reference table scopes the query joins:
	// the main table and included relationships.
	joined := map[string]bool{t.name: true}
	var mark func(rels []*Relation)
	mark = func(rels []*Relation) {
		for _, r := range rels {
			if !r.included {
				continue
			}
			joined[r.Alias] = true
			mark(r.Children())
		}
	}
	mark(t.rels.all())

	for _, c := range t.where.conditions() {
		if !joined[c.scope] {
			return buildErrf("Where", "relationship %q is filtered but not included", c.scope)
		}
		s, ok := t.loader.schema(c.table)
		if !ok {
			return buildErrf("Where", "no schema for table %q", c.table)
		}
		if _, ok := s.Column(c.column); !ok {
			return buildErrf("Where", "unknown column %q on table %q", c.column, c.table)
		}
	}
	for _, k := range t.sort {
		if _, ok := main.Column(k.Column); !ok {
			return buildErrf("SortBy", "unknown column %q on table %q", k.Column, t.name)
		}
	}
	for _, g := range t.group {
		if _, ok := main.Column(g); !ok {
			return buildErrf("GroupBy", "unknown column %q on table %q", g, t.name)
		}
	}
	for _, a := range t.aggs {
		if a.column == "" {
			continue
		}
		if _, ok := main.Column(a.column); !ok {
			return buildErrf("GroupBy", "unknown column %q on table %q", a.column, t.name)
		}
	}
	for _, p := range t.projection {
		if _, ok := main.Column(p.Column); !ok {
			return buildErrf("Choose", "unknown column %q on table %q", p.Column, t.name)
		}
	}
	return nil
}

func (t *Table) compileSelect() (*Command, error) {
	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}
	if err := t.validate(main); err != nil {
		return nil, err
	}

	included := includedRelations(t.rels)
	q := t.exec
	mainRef := q.EscapeTable(t.name)

	s := &stmt{}
	s.raw("SELECT ")
	if err := t.writeSelection(s, main, included); err != nil {
		return nil, err
	}
	s.raw(" FROM ")

	// Paginating a joined 1:n result directly would truncate mid-group, so
	// the main table is paginated in an isolated sub-select and the joins
	// apply outside it.
	paginated := t.limit != nil && anyIncludedMany(included)
	if paginated {
		s.raw("(SELECT * FROM " + mainRef)
		inner := &stmt{}
		t.where.render(inner, q, keepScope(t.name))
		if !inner.empty() {
			s.raw(" WHERE ")
			s.merge(inner)
		}
		t.writeOrderBy(s, mainRef)
		s.bind(" LIMIT ?", *t.limit)
		if t.offset != nil {
			s.bind(" OFFSET ?", *t.offset)
		}
		s.raw(") AS " + mainRef)
	} else {
		s.raw(mainRef)
	}

	if err := t.writeJoins(s, mainRef, included); err != nil {
		return nil, err
	}

	outer := &stmt{}
	if paginated {
		t.where.render(outer, q, dropScope(t.name))
	} else {
		t.where.render(outer, q, keepAll)
	}
	if !outer.empty() {
		s.raw(" WHERE ")
		s.merge(outer)
	}

	if len(t.group) > 0 {
		s.raw(" GROUP BY ")
		for i, g := range t.group {
			if i > 0 {
				s.raw(", ")
			}
			s.raw(mainRef + "." + q.EscapeColumn(g))
		}
	}

	t.writeOrderBy(s, mainRef)

	if !paginated && t.limit != nil {
		s.bind(" LIMIT ?", *t.limit)
		if t.offset != nil {
			s.bind(" OFFSET ?", *t.offset)
		}
	}

	return &Command{Table: t.name, Op: OpSelect, SQL: s.sql(), Args: s.args}, nil
}

func (t *Table) writeOrderBy(s *stmt, mainRef string) {
	if len(t.sort) == 0 {
		return
	}
	q := t.exec
	s.raw(" ORDER BY ")
	for i, k := range t.sort {
		if i > 0 {
			s.raw(", ")
		}
		s.raw(mainRef + "." + q.EscapeColumn(k.Column))
		if k.Desc {
			s.raw(" DESC")
		}
	}
}

func (t *Table) writeSelection(s *stmt, main *Schema, included []*Relation) error {
	q := t.exec
	mainRef := q.EscapeTable(t.name)

	switch {
	case len(t.group) > 0:
		for i, g := range t.group {
			if i > 0 {
				s.raw(", ")
			}
			s.raw(mainRef + "." + q.EscapeColumn(g) + " AS " + q.EscapeColumn(g))
		}
		for _, a := range t.aggs {
			s.raw(", ")
			if a.column == "" {
				s.raw("COUNT(*)")
			} else {
				s.raw(a.fn + "(" + mainRef + "." + q.EscapeColumn(a.column) + ")")
			}
			s.raw(" AS " + q.EscapeColumn(a.alias()))
		}
		return nil

	case len(t.projection) > 0:
		for i, p := range t.projection {
			if i > 0 {
				s.raw(", ")
			}
			as := p.As
			if as == "" {
				as = p.Column
			}
			s.raw(mainRef + "." + q.EscapeColumn(p.Column) + " AS " + q.EscapeColumn(as))
		}
		return nil
	}

	first := true
	for _, c := range main.Columns() {
		if !first {
			s.raw(", ")
		}
		first = false
		s.raw(mainRef + "." + q.EscapeColumn(c.Name) + " AS " + q.EscapeColumn(c.Alias))
	}

	var writeRel func(r *Relation) error
	writeRel = func(r *Relation) error {
		rs, err := t.relationSchema(r)
		if err != nil {
			return err
		}
		relRef := q.EscapeTable(r.Alias)
		for _, c := range rs.Columns() {
			s.raw(", " + relRef + "." + q.EscapeColumn(c.Name) + " AS " + q.EscapeColumn(c.Alias))
		}
		for _, child := range r.Children() {
			if !child.included {
				continue
			}
			if err := writeRel(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range included {
		if err := writeRel(r); err != nil {
			return err
		}
	}
	return nil
}

// writeJoins emits one LEFT JOIN per active relationship, depth first.
// parentRef is the quoted reference joined against: the main table for
// top-level relationships, the parent's alias for nested ones.
func (t *Table) writeJoins(s *stmt, parentRef string, rels []*Relation) error {
	q := t.exec
	for _, r := range rels {
		if !r.included {
			continue
		}
		relRef := q.EscapeTable(r.Alias)
		s.raw(" LEFT JOIN " + q.EscapeTable(r.Table) + " AS " + relRef)
		s.raw(" ON " + parentRef + "." + q.EscapeColumn(r.LocalKey) + " = " + relRef + "." + q.EscapeColumn(r.ForeignKey))
		if err := t.writeJoins(s, relRef, r.Children()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) compileCount() (*Command, error) {
	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}
	if err := t.validate(main); err != nil {
		return nil, err
	}

	q := t.exec
	s := &stmt{}
	s.raw("SELECT COUNT(*) FROM " + q.EscapeTable(t.name))
	if err := t.writeJoins(s, q.EscapeTable(t.name), includedRelations(t.rels)); err != nil {
		return nil, err
	}

	w := &stmt{}
	t.where.render(w, q, keepAll)
	if !w.empty() {
		s.raw(" WHERE ")
		s.merge(w)
	}

	return &Command{Table: t.name, Op: OpCount, SQL: s.sql(), Args: s.args}, nil
}

// insertKeys computes the column list for an insert: the union of record keys
// in first-seen order (sorted when the option is set), minus the identity
// column and keys holding relationship data.
func (t *Table) insertKeys(records []Record, identity string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if seen[k] {
				continue
			}
			seen[k] = true
			if k == identity || !scalarValue(rec[k]) {
				continue
			}
			keys = append(keys, k)
		}
	}
	if t.sortInsertKeys {
		sort.Strings(keys)
	}
	return keys
}

func (t *Table) compileInsert(records []Record) (*Command, error) {
	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}

	keys := t.insertKeys(records, t.identityColumn(main))
	if len(keys) == 0 {
		return nil, ErrEmptyRecord
	}
	for _, k := range keys {
		if _, ok := main.Column(k); !ok {
			return nil, buildErrf("Insert", "unknown column %q on table %q", k, t.name)
		}
	}

	q := t.exec
	s := &stmt{}
	s.raw("INSERT INTO " + q.EscapeTable(t.name) + " (")
	for i, k := range keys {
		if i > 0 {
			s.raw(", ")
		}
		s.raw(q.EscapeColumn(k))
	}
	s.raw(") VALUES ")

	// Missing keys bind explicit NULL so every tuple has equal arity.
	for i, rec := range records {
		if i > 0 {
			s.raw(", ")
		}
		s.raw("(")
		for j, k := range keys {
			if j > 0 {
				s.raw(", ")
			}
			v, ok := rec[k]
			if !ok || !scalarValue(v) {
				v = nil
			}
			s.bind("?", v)
		}
		s.raw(")")
	}

	return &Command{Table: t.name, Op: OpInsert, SQL: s.sql(), Args: s.args}, nil
}

func (t *Table) compileUpdate(partial Record) (*Command, error) {
	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}
	if err := t.validate(main); err != nil {
		return nil, err
	}

	identity := t.identityColumn(main)
	var keys []string
	for _, k := range partial.Keys() {
		if k == identity || !scalarValue(partial[k]) {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, ErrEmptyRecord
	}
	for _, k := range keys {
		if _, ok := main.Column(k); !ok {
			return nil, buildErrf("Update", "unknown column %q on table %q", k, t.name)
		}
	}

	q := t.exec
	s := &stmt{}
	s.raw("UPDATE " + q.EscapeTable(t.name) + " SET ")
	for i, k := range keys {
		if i > 0 {
			s.raw(", ")
		}
		s.bind(q.EscapeColumn(k)+" = ?", partial[k])
	}

	w := &stmt{}
	t.where.render(w, q, keepAll)
	if !w.empty() {
		s.raw(" WHERE ")
		s.merge(w)
	}

	return &Command{Table: t.name, Op: OpUpdate, SQL: s.sql(), Args: s.args}, nil
}

func (t *Table) compileDelete() (*Command, error) {
	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}
	if err := t.validate(main); err != nil {
		return nil, err
	}

	q := t.exec
	s := &stmt{}
	s.raw("DELETE FROM " + q.EscapeTable(t.name))

	w := &stmt{}
	t.where.render(w, q, keepAll)
	if !w.empty() {
		s.raw(" WHERE ")
		s.merge(w)
	}

	return &Command{Table: t.name, Op: OpDelete, SQL: s.sql(), Args: s.args}, nil
}

func (t *Table) compileTruncate() *Command {
	return &Command{
		Table: t.name,
		Op:    OpDelete,
		SQL:   "DELETE FROM " + t.exec.EscapeTable(t.name),
	}
}

// identityColumn returns the configured identity column, falling back to the
// schema's auto-increment column.
func (t *Table) identityColumn(main *Schema) string {
	if t.identity != "" {
		return t.identity
	}
	if c := main.Identity(); c != nil {
		return c.Name
	}
	return ""
}
