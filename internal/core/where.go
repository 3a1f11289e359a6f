package core

import "strings"

type chainKind uint8

const (
	chainAnd chainKind = iota
	chainOr
)

func (k chainKind) keyword() string {
	if k == chainOr {
		return "OR"
	}
	return "AND"
}

// condition is one leaf comparison bound to a table scope.
type condition struct {
	scope  string // table alias the condition belongs to
	table  string // target table name, for schema validation
	column string
	op     string // "=", "<>", "<", "<=", ">", ">=", "LIKE"
	value  any
	list   []any // IN operands
	isIn   bool
}

// whereNode is one element of a filter tree: a leaf condition or a
// parenthesized group. A negated node serializes as NOT (...).
type whereNode struct {
	kind  chainKind // how the node chains to its predecessor
	not   bool
	cond  *condition
	group []*whereNode
}

// whereTree is a compiled filter. It is immutable once built; forks share it
// by reference.
type whereTree struct {
	nodes []*whereNode
}

func (w *whereTree) empty() bool {
	return w == nil || len(w.nodes) == 0
}

// keepAll retains every condition regardless of scope.
func keepAll(string) bool { return true }

// keepScope retains only conditions belonging to the given table scope.
// Used to isolate the main table's predicate for the pagination rewrite.
func keepScope(scope string) func(string) bool {
	return func(s string) bool { return s == scope }
}

// dropScope retains only conditions outside the given table scope.
func dropScope(scope string) func(string) bool {
	return func(s string) bool { return s != scope }
}

// render serializes the tree filtered by keep into s. Text and arguments are
// produced by the same depth-first walk, so placeholder order always matches
// argument order. The leading chain keyword of the first retained node is
// suppressed; the caller prefixes WHERE.
func (w *whereTree) render(s *stmt, q quoter, keep func(string) bool) {
	if w.empty() {
		return
	}
	first := true
	for _, n := range w.nodes {
		renderNode(s, n, q, keep, &first)
	}
}

// matches reports whether any retained condition exists under n.
func (n *whereNode) matches(keep func(string) bool) bool {
	if n.cond != nil {
		return keep(n.cond.scope)
	}
	for _, c := range n.group {
		if c.matches(keep) {
			return true
		}
	}
	return false
}

func renderNode(s *stmt, n *whereNode, q quoter, keep func(string) bool, first *bool) {
	if !n.matches(keep) {
		return
	}

	if !*first {
		s.raw(" " + n.kind.keyword() + " ")
	}
	*first = false

	if n.not {
		s.raw("NOT (")
	}

	if n.cond != nil {
		renderCondition(s, n.cond, q)
		if n.not {
			s.raw(")")
		}
		return
	}

	if !n.not {
		s.raw("(")
	}
	inner := true
	for _, c := range n.group {
		renderNode(s, c, q, keep, &inner)
	}
	s.raw(")")
}

func renderCondition(s *stmt, c *condition, q quoter) {
	ref := q.EscapeTable(c.scope) + "." + q.EscapeColumn(c.column)

	if c.isIn {
		if len(c.list) == 0 {
			// Empty IN is always false.
			s.raw("0=1")
			return
		}
		s.raw(ref + " IN (")
		for i, v := range c.list {
			if i > 0 {
				s.raw(", ")
			}
			s.bind("?", v)
		}
		s.raw(")")
		return
	}

	if c.value == nil {
		switch c.op {
		case "=":
			s.raw(ref + " IS NULL")
			return
		case "<>":
			s.raw(ref + " IS NOT NULL")
			return
		}
	}

	s.bind(ref+" "+c.op+" ?", c.value)
}

// conditions returns every leaf in depth-first order.
func (w *whereTree) conditions() []*condition {
	if w.empty() {
		return nil
	}
	var out []*condition
	var walk func(nodes []*whereNode)
	walk = func(nodes []*whereNode) {
		for _, n := range nodes {
			if n.cond != nil {
				out = append(out, n.cond)
				continue
			}
			walk(n.group)
		}
	}
	walk(w.nodes)
	return out
}

// whereBuilder accumulates nodes while a predicate callback runs.
type whereBuilder struct {
	t         *Table
	rootScope string
	rootTable string
	nodes     []*whereNode
}

// Row resolves column and relationship references inside predicate callbacks.
// Unknown relationship names fail the build with a descriptive error; unknown
// column names are caught against the schema at compile time.
type Row struct {
	w     *whereBuilder
	scope string
	table string
	rel   *Relation // nil when scoped to the main table
}

// Col selects a column of the current scope for comparison.
func (r *Row) Col(name string) *Cond {
	return &Cond{r: r, col: name}
}

// Rel navigates into a declared relationship, scoping subsequent column
// references to its namespaced alias.
func (r *Row) Rel(name string) *Row {
	var rel *Relation
	var ok bool
	if r.rel == nil {
		rel, ok = r.w.t.rels.get(name)
	} else {
		rel, ok = r.rel.Child(name)
	}
	if !ok {
		r.w.t.fail(buildErrf("Where", "relationship %q has not been declared", name))
		return &Row{w: r.w, scope: r.scope, table: r.table, rel: r.rel}
	}
	return &Row{w: r.w, scope: rel.Alias, table: rel.Table, rel: rel}
}

// Cond is a column reference pending exactly one comparison.
type Cond struct {
	r   *Row
	col string
	neg bool
}

// Not negates the next comparison. The condition serializes inside its own
// NOT (...) group.
func (c *Cond) Not() *Cond {
	c.neg = true
	return c
}

// Equals records an equality comparison. A nil value serializes as IS NULL.
func (c *Cond) Equals(v any) *Chain { return c.cmp("=", v) }

// NotEquals records an inequality comparison. A nil value serializes as IS NOT NULL.
func (c *Cond) NotEquals(v any) *Chain { return c.cmp("<>", v) }

// LessThan records a < comparison.
func (c *Cond) LessThan(v any) *Chain { return c.cmp("<", v) }

// LessThanOrEqualTo records a <= comparison.
func (c *Cond) LessThanOrEqualTo(v any) *Chain { return c.cmp("<=", v) }

// GreaterThan records a > comparison.
func (c *Cond) GreaterThan(v any) *Chain { return c.cmp(">", v) }

// GreaterThanOrEqualTo records a >= comparison.
func (c *Cond) GreaterThanOrEqualTo(v any) *Chain { return c.cmp(">=", v) }

// In records a membership comparison. An empty value set compiles to the
// always-false predicate 0=1.
func (c *Cond) In(values ...any) *Chain {
	return c.record(&condition{
		scope:  c.r.scope,
		table:  c.r.table,
		column: c.col,
		isIn:   true,
		list:   values,
	})
}

// Like records a LIKE comparison with the pattern as given.
func (c *Cond) Like(pattern string) *Chain { return c.cmp("LIKE", pattern) }

// likeEscapes pairs each special LIKE character with its escaped form.
var likeEscapes = []string{`\`, `\\`, `%`, `\%`, `_`, `\_`}

// Contains records a substring match: the value is escaped and wrapped in
// wildcards on both sides.
func (c *Cond) Contains(substr string) *Chain {
	for i := 0; i < len(likeEscapes); i += 2 {
		substr = strings.ReplaceAll(substr, likeEscapes[i], likeEscapes[i+1])
	}
	return c.cmp("LIKE", "%"+substr+"%")
}

func (c *Cond) cmp(op string, v any) *Chain {
	return c.record(&condition{
		scope:  c.r.scope,
		table:  c.r.table,
		column: c.col,
		op:     op,
		value:  v,
	})
}

func (c *Cond) record(cond *condition) *Chain {
	c.r.w.nodes = append(c.r.w.nodes, &whereNode{not: c.neg, cond: cond})
	return &Chain{w: c.r.w}
}

// Chain continues a filter after a completed comparison. And and Or receive a
// fresh Row scoped to the original table; a callback that itself chains
// becomes a parenthesized sub-group.
type Chain struct {
	w *whereBuilder
}

// And chains the callback's conditions with AND.
func (ch *Chain) And(fn func(*Row) *Chain) *Chain { return ch.chain(chainAnd, fn) }

// Or chains the callback's conditions with OR.
func (ch *Chain) Or(fn func(*Row) *Chain) *Chain { return ch.chain(chainOr, fn) }

func (ch *Chain) chain(kind chainKind, fn func(*Row) *Chain) *Chain {
	child := &whereBuilder{
		t:         ch.w.t,
		rootScope: ch.w.rootScope,
		rootTable: ch.w.rootTable,
	}
	fn(&Row{w: child, scope: child.rootScope, table: child.rootTable})

	switch len(child.nodes) {
	case 0:
		ch.w.t.fail(buildErrf("Where", "chained callback added no condition"))
	case 1:
		n := child.nodes[0]
		n.kind = kind
		ch.w.nodes = append(ch.w.nodes, n)
	default:
		ch.w.nodes = append(ch.w.nodes, &whereNode{kind: kind, group: child.nodes})
	}
	return ch
}
