package core

import "regexp"

// Cardinality distinguishes 1:1 from 1:n relationships.
type Cardinality uint8

const (
	// One nests the joined row as a single object (or nil when unmatched).
	One Cardinality = iota
	// Many nests the joined rows as a deduplicated array.
	Many
)

// String returns "one" or "many".
func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Relation is one node of a table's relationship tree.
type Relation struct {
	Name       string
	Card       Cardinality
	Table      string
	LocalKey   string // key column on the parent side
	ForeignKey string // key column on the target table
	Alias      string // parent alias chain + "_" + name; unique per path

	children map[string]*Relation
	order    []string
	included bool
	complete bool
}

// Child returns the nested relationship declared under name.
func (r *Relation) Child(name string) (*Relation, bool) {
	c, ok := r.children[name]
	return c, ok
}

// Children returns nested relationships in declaration order.
func (r *Relation) Children() []*Relation {
	out := make([]*Relation, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.children[name])
	}
	return out
}

// Included reports whether the relationship is active for the next query.
func (r *Relation) Included() bool {
	return r.included
}

func (r *Relation) addChild(c *Relation) bool {
	if _, ok := r.children[c.Name]; ok {
		return false
	}
	if r.children == nil {
		r.children = make(map[string]*Relation)
	}
	r.children[c.Name] = c
	r.order = append(r.order, c.Name)
	return true
}

// clone deep-copies the node and its subtree. Forks clone so that marking a
// relationship included on one fork never leaks into a sibling fork.
func (r *Relation) clone() *Relation {
	nr := *r
	nr.children = nil
	nr.order = nil
	for _, name := range r.order {
		nr.addChild(r.children[name].clone())
	}
	return &nr
}

// relSet is the top level of a relationship tree.
type relSet struct {
	byName map[string]*Relation
	order  []string
}

func newRelSet() *relSet {
	return &relSet{byName: make(map[string]*Relation)}
}

func (s *relSet) add(r *Relation) bool {
	if _, ok := s.byName[r.Name]; ok {
		return false
	}
	s.byName[r.Name] = r
	s.order = append(s.order, r.Name)
	return true
}

func (s *relSet) get(name string) (*Relation, bool) {
	r, ok := s.byName[name]
	return r, ok
}

func (s *relSet) all() []*Relation {
	out := make([]*Relation, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

func (s *relSet) clone() *relSet {
	ns := newRelSet()
	for _, name := range s.order {
		ns.add(s.byName[name].clone())
	}
	return ns
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

// RelationBuilder configures one declared relationship in stages: an optional
// FromTable (defaulting the target table to the relationship name), then the
// key pair via WithPrimary+WithForeign or WithKeys. Once both keys are known
// the declaration completes and the target table's schema describe is
// scheduled. AndThatHasOne/AndThatHasMany declare nested relationships under
// a completed declaration.
//
// Declarations run against the context they were opened on; forks deep-copy
// the finished tree.
type RelationBuilder struct {
	t   *Table
	rel *Relation
	pk  string
	fk  string
}

func (t *Table) declare(name string, card Cardinality, parent *Relation) *RelationBuilder {
	rel := &Relation{Name: name, Card: card, Table: name}
	b := &RelationBuilder{t: t, rel: rel}

	if !validIdent(name) {
		t.fail(buildErrf("relationship", "invalid relationship name %q", name))
		return b
	}

	if parent == nil {
		rel.Alias = name
		if !t.rels.add(rel) {
			t.fail(buildErrf("relationship", "relationship %q is already declared", name))
		}
		return b
	}

	rel.Alias = parent.Alias + "_" + name
	if !parent.addChild(rel) {
		t.fail(buildErrf("relationship", "relationship %q is already declared under %q", name, parent.Name))
	}
	return b
}

// HasOne declares a 1:1 relationship under the given name.
// The target table defaults to the relationship name.
func (t *Table) HasOne(name string) *RelationBuilder {
	return t.declare(name, One, nil)
}

// HasMany declares a 1:n relationship under the given name.
func (t *Table) HasMany(name string) *RelationBuilder {
	return t.declare(name, Many, nil)
}

// FromTable sets the target table when it differs from the relationship name.
// Must be called before the key pair completes the declaration.
func (b *RelationBuilder) FromTable(table string) *RelationBuilder {
	if b.rel.complete {
		b.t.fail(buildErrf("relationship", "FromTable on %q must precede key configuration", b.rel.Name))
		return b
	}
	if !validIdent(table) {
		b.t.fail(buildErrf("relationship", "invalid table name %q for relationship %q", table, b.rel.Name))
		return b
	}
	b.rel.Table = table
	return b
}

// WithPrimary sets the key column on the parent side.
func (b *RelationBuilder) WithPrimary(column string) *RelationBuilder {
	b.pk = column
	b.tryComplete()
	return b
}

// WithForeign sets the key column on the target table.
func (b *RelationBuilder) WithForeign(column string) *RelationBuilder {
	b.fk = column
	b.tryComplete()
	return b
}

// WithKeys sets both key columns at once.
func (b *RelationBuilder) WithKeys(primary, foreign string) *RelationBuilder {
	b.pk = primary
	b.fk = foreign
	b.tryComplete()
	return b
}

func (b *RelationBuilder) tryComplete() {
	if b.rel.complete || b.pk == "" || b.fk == "" {
		return
	}
	b.rel.LocalKey = b.pk
	b.rel.ForeignKey = b.fk
	b.rel.complete = true
	b.t.loader.request(b.rel.Table)
}

// AndThatHasOne declares a nested 1:1 relationship under this one.
// The parent declaration must be complete.
func (b *RelationBuilder) AndThatHasOne(name string) *RelationBuilder {
	return b.nest(name, One)
}

// AndThatHasMany declares a nested 1:n relationship under this one.
func (b *RelationBuilder) AndThatHasMany(name string) *RelationBuilder {
	return b.nest(name, Many)
}

func (b *RelationBuilder) nest(name string, card Cardinality) *RelationBuilder {
	if !b.rel.complete {
		b.t.fail(buildErrf("relationship", "nested declaration %q requires keys on %q first", name, b.rel.Name))
		return &RelationBuilder{t: b.t, rel: &Relation{Name: name, Card: card, Table: name}}
	}
	return b.t.declare(name, card, b.rel)
}

// IncludeChain descends through included relationships, scoping each
// ThenInclude to the namespace of the relationship included before it.
// End returns the underlying context fork for further chaining.
type IncludeChain struct {
	t   *Table
	rel *Relation
}

// Include marks a declared relationship as active for the next query: its
// table is joined and its namespaced columns are selected. Returns a handle
// on a new fork; the receiver is unchanged.
func (t *Table) Include(name string) *IncludeChain {
	nt := t.fork()
	rel, ok := nt.rels.get(name)
	if !ok {
		nt.fail(buildErrf("Include", "relationship %q has not been declared", name))
		return &IncludeChain{t: nt}
	}
	if !rel.complete {
		nt.fail(buildErrf("Include", "relationship %q is missing key configuration", name))
		return &IncludeChain{t: nt}
	}
	rel.included = true
	return &IncludeChain{t: nt, rel: rel}
}

// ThenInclude marks a child of the previously included relationship as active.
func (ic *IncludeChain) ThenInclude(name string) *IncludeChain {
	if ic.rel == nil {
		return ic
	}
	child, ok := ic.rel.Child(name)
	if !ok {
		ic.t.fail(buildErrf("ThenInclude", "relationship %q has no nested relationship %q", ic.rel.Name, name))
		return &IncludeChain{t: ic.t}
	}
	if !child.complete {
		ic.t.fail(buildErrf("ThenInclude", "relationship %q is missing key configuration", name))
		return &IncludeChain{t: ic.t}
	}
	child.included = true
	return &IncludeChain{t: ic.t, rel: child}
}

// End returns the context fork carrying the include state.
func (ic *IncludeChain) End() *Table {
	return ic.t
}
