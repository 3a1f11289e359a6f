package core

import (
	"context"
	"strconv"
	"time"
)

// Table is an immutable query context bound to one table. Builder methods
// return a fork carrying the added state; the receiver keeps serving its own
// state, so forks can be cached and branched freely.
//
// Schemas resolve in the background. Terminal operations wait for every
// describe scheduled on the lineage before compiling.
type Table struct {
	exec Executor
	name string

	identity       string
	sortInsertKeys bool
	allowUpdateAll bool
	allowTruncate  bool

	loader *loader
	rels   *relSet
	where  *whereTree

	sort       []SortKey
	group      []string
	aggs       []aggregate
	projection []SelectedColumn
	limit      *int
	offset     *int

	hooks   []CommandHook
	opHooks map[Operation][]CommandHook

	err error
}

// Option configures a new table context.
type Option func(*Table)

// WithIdentity names the identity column explicitly, overriding the
// auto-increment column discovered from the schema.
func WithIdentity(column string) Option {
	return func(t *Table) { t.identity = column }
}

// WithSortedInsertKeys sorts insert column lists alphabetically instead of
// using first-seen key order.
func WithSortedInsertKeys() Option {
	return func(t *Table) { t.sortInsertKeys = true }
}

// WithAllowUpdateAll permits UpdateAll on this context and its forks.
func WithAllowUpdateAll() Option {
	return func(t *Table) { t.allowUpdateAll = true }
}

// WithAllowTruncate permits Truncate on this context and its forks.
func WithAllowTruncate() Option {
	return func(t *Table) { t.allowTruncate = true }
}

// WithHook registers a hook invoked after every command issued from this
// context or its forks.
func WithHook(h CommandHook) Option {
	return func(t *Table) { t.hooks = append(t.hooks, h) }
}

// WithHookFor registers a hook invoked only for the given operation.
func WithHookFor(op Operation, h CommandHook) Option {
	return func(t *Table) {
		if t.opHooks == nil {
			t.opHooks = make(map[Operation][]CommandHook)
		}
		t.opHooks[op] = append(t.opHooks[op], h)
	}
}

// New opens a context on the named table and schedules its schema describe.
func New(exec Executor, name string, opts ...Option) (*Table, error) {
	if !validIdent(name) {
		return nil, buildErrf("New", "invalid table name %q", name)
	}
	t := &Table{
		exec:   exec,
		name:   name,
		loader: newLoader(exec),
		rels:   newRelSet(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.loader.request(name)
	return t, nil
}

// Name returns the table name the context is bound to.
func (t *Table) Name() string {
	return t.name
}

// Err returns the first builder misuse recorded on this context, if any.
// Terminal operations return it as well.
func (t *Table) Err() error {
	return t.err
}

// fork copies the context. The loader is shared so the whole lineage settles
// together; everything mutable is cloned or copied.
func (t *Table) fork() *Table {
	nt := *t
	nt.rels = t.rels.clone()
	nt.sort = append([]SortKey(nil), t.sort...)
	nt.group = append([]string(nil), t.group...)
	nt.aggs = append([]aggregate(nil), t.aggs...)
	nt.projection = append([]SelectedColumn(nil), t.projection...)
	nt.hooks = append([]CommandHook(nil), t.hooks...)
	if t.opHooks != nil {
		nt.opHooks = make(map[Operation][]CommandHook, len(t.opHooks))
		for op, hs := range t.opHooks {
			nt.opHooks[op] = append([]CommandHook(nil), hs...)
		}
	}
	return &nt
}

// fail records the first builder misuse. Later misuses are dropped; the first
// one is what the caller needs to see.
func (t *Table) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// Where replaces the context's filter with the conditions built by the
// callback. Any filter inherited from a prior fork is discarded; narrowing an
// existing filter is done inside one callback with Chain.And. Conditions the
// callback chains keep their own AND/OR structure as a parenthesized group.
func (t *Table) Where(fn func(*Row) *Chain) *Table {
	nt := t.fork()
	b := &whereBuilder{t: nt, rootScope: nt.name, rootTable: nt.name}
	fn(&Row{w: b, scope: b.rootScope, table: b.rootTable})

	if len(b.nodes) == 0 {
		nt.fail(buildErrf("Where", "callback added no condition"))
		return nt
	}

	var node *whereNode
	if len(b.nodes) == 1 {
		node = b.nodes[0]
	} else {
		node = &whereNode{group: b.nodes}
	}
	nt.where = &whereTree{nodes: []*whereNode{node}}
	return nt
}

// Sorting collects ORDER BY keys in call order.
type Sorting struct {
	keys []SortKey
}

// Asc adds an ascending sort key.
func (s *Sorting) Asc(column string) *Sorting {
	s.keys = append(s.keys, SortKey{Column: column})
	return s
}

// Desc adds a descending sort key.
func (s *Sorting) Desc(column string) *Sorting {
	s.keys = append(s.keys, SortKey{Column: column, Desc: true})
	return s
}

// SortBy replaces the context's ordering with the keys the callback adds.
func (t *Table) SortBy(fn func(*Sorting)) *Table {
	nt := t.fork()
	s := &Sorting{}
	fn(s)
	if len(s.keys) == 0 {
		nt.fail(buildErrf("SortBy", "callback added no sort key"))
		return nt
	}
	nt.sort = s.keys
	return nt
}

// Grouping collects GROUP BY columns and aggregate projections. Aggregates
// surface under dynamic aliases: $count_<col>, $avg_<col>, $min_<col>,
// $max_<col>, $sum_<col>, and $total for CountAll.
type Grouping struct {
	cols []string
	aggs []aggregate
}

// By adds a grouping column. It is selected under its own name.
func (g *Grouping) By(column string) *Grouping {
	g.cols = append(g.cols, column)
	return g
}

// Count adds COUNT(column).
func (g *Grouping) Count(column string) *Grouping {
	g.aggs = append(g.aggs, aggregate{fn: "COUNT", column: column})
	return g
}

// CountAll adds COUNT(*), selected as $total.
func (g *Grouping) CountAll() *Grouping {
	g.aggs = append(g.aggs, aggregate{fn: "COUNT"})
	return g
}

// Avg adds AVG(column).
func (g *Grouping) Avg(column string) *Grouping {
	g.aggs = append(g.aggs, aggregate{fn: "AVG", column: column})
	return g
}

// Min adds MIN(column).
func (g *Grouping) Min(column string) *Grouping {
	g.aggs = append(g.aggs, aggregate{fn: "MIN", column: column})
	return g
}

// Max adds MAX(column).
func (g *Grouping) Max(column string) *Grouping {
	g.aggs = append(g.aggs, aggregate{fn: "MAX", column: column})
	return g
}

// Sum adds SUM(column).
func (g *Grouping) Sum(column string) *Grouping {
	g.aggs = append(g.aggs, aggregate{fn: "SUM", column: column})
	return g
}

// GroupBy switches the context to grouped selection. Incompatible with Choose.
func (t *Table) GroupBy(fn func(*Grouping)) *Table {
	nt := t.fork()
	if len(nt.projection) > 0 {
		nt.fail(buildErrf("GroupBy", "context already has a column projection"))
		return nt
	}
	if len(nt.group) > 0 {
		nt.fail(buildErrf("GroupBy", "context is already grouped"))
		return nt
	}
	g := &Grouping{}
	fn(g)
	if len(g.cols) == 0 {
		nt.fail(buildErrf("GroupBy", "callback added no grouping column"))
		return nt
	}
	nt.group = g.cols
	nt.aggs = g.aggs
	return nt
}

// Projection collects an explicit selection list.
type Projection struct {
	cols []SelectedColumn
}

// Col selects a column under its own name.
func (p *Projection) Col(column string) *Projection {
	p.cols = append(p.cols, SelectedColumn{Column: column})
	return p
}

// As selects a column under a different name.
func (p *Projection) As(column, alias string) *Projection {
	p.cols = append(p.cols, SelectedColumn{Column: column, As: alias})
	return p
}

// Choose restricts selection to the columns the callback adds. Incompatible
// with GroupBy; projected results skip relationship reconstruction.
func (t *Table) Choose(fn func(*Projection)) *Table {
	nt := t.fork()
	if len(nt.group) > 0 {
		nt.fail(buildErrf("Choose", "context is already grouped"))
		return nt
	}
	if len(nt.projection) > 0 {
		nt.fail(buildErrf("Choose", "context already has a column projection"))
		return nt
	}
	p := &Projection{}
	fn(p)
	if len(p.cols) == 0 {
		nt.fail(buildErrf("Choose", "callback added no column"))
		return nt
	}
	nt.projection = p.cols
	return nt
}

// Take limits the number of main-table rows. Accepts any non-negative
// integral value, including numeric strings.
func (t *Table) Take(n any) *Table {
	nt := t.fork()
	v, err := parseCount("Take", n)
	if err != nil {
		nt.fail(err)
		return nt
	}
	nt.limit = &v
	return nt
}

// Skip offsets the main-table rows. Requires Take on the same context.
func (t *Table) Skip(n any) *Table {
	nt := t.fork()
	v, err := parseCount("Skip", n)
	if err != nil {
		nt.fail(err)
		return nt
	}
	nt.offset = &v
	return nt
}

func parseCount(op string, v any) (int, error) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int8:
		n = int(x)
	case int16:
		n = int(x)
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case uint:
		n = int(x)
	case uint8:
		n = int(x)
	case uint16:
		n = int(x)
	case uint32:
		n = int(x)
	case uint64:
		n = int(x)
	case float64:
		n = int(x)
		if float64(n) != x {
			return 0, buildErrf(op, "count %v is not integral", x)
		}
	case string:
		p, err := strconv.Atoi(x)
		if err != nil {
			return 0, buildErrf(op, "count %q is not a number", x)
		}
		n = p
	default:
		return 0, buildErrf(op, "count of type %T is not supported", v)
	}
	if n < 0 {
		return 0, buildErrf(op, "count %d is negative", n)
	}
	return n, nil
}

// ready surfaces recorded misuse and blocks until every scheduled schema
// describe on the lineage has settled.
func (t *Table) ready() error {
	if t.err != nil {
		return t.err
	}
	return t.loader.wait()
}

// run executes a compiled command through fn, emits the event, and wraps any
// execution failure with the command context.
func (t *Table) run(cmd *Command, rows int64, err error, started time.Time) error {
	ev := CommandEvent{
		Time:         started,
		Operation:    cmd.Op,
		Table:        cmd.Table,
		SQL:          cmd.SQL,
		Raw:          Interpolate(cmd.SQL, cmd.Args),
		Args:         cmd.Args,
		Duration:     time.Since(started),
		RowsAffected: rows,
		Err:          err,
	}

	if sink, ok := t.exec.(eventSink); ok {
		sink.emit(ev)
	}
	for _, h := range t.hooks {
		h(ev)
	}
	for _, h := range t.opHooks[cmd.Op] {
		h(ev)
	}

	if err != nil {
		return &CommandError{Table: cmd.Table, Operation: cmd.Op, SQL: cmd.SQL, Raw: ev.Raw, Err: err}
	}
	return nil
}

// Select runs the query and returns its rows. Included relationships come
// back nested: 1:1 as a Record (nil when unmatched), 1:n as a deduplicated
// []Record.
func (t *Table) Select(ctx context.Context) ([]Record, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	cmd, err := t.compileSelect()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	rows, err := t.exec.Query(ctx, cmd.SQL, cmd.Args)
	if err := t.run(cmd, int64(len(rows)), err, started); err != nil {
		return nil, err
	}
	return t.reconstruct(rows)
}

// Count runs SELECT COUNT(*) with the context's filter and joins.
func (t *Table) Count(ctx context.Context) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	cmd, err := t.compileCount()
	if err != nil {
		return 0, err
	}

	started := time.Now()
	n, err := t.exec.Count(ctx, cmd.SQL, cmd.Args)
	if err := t.run(cmd, n, err, started); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertOne inserts a single record and returns a copy with the identity
// column back-filled when the dialect reports generated keys.
func (t *Table) InsertOne(ctx context.Context, rec Record) (Record, error) {
	out, err := t.InsertMany(ctx, []Record{rec})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// InsertMany inserts records in one multi-row command. The column list is the
// union of all record keys; missing keys insert NULL. An empty slice is a
// no-op. Returned records are copies in input order with identities
// back-filled.
func (t *Table) InsertMany(ctx context.Context, records []Record) ([]Record, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Record{}, nil
	}
	cmd, err := t.compileInsert(records)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := t.exec.Insert(ctx, cmd.SQL, cmd.Args)
	if err := t.run(cmd, res.Rows, err, started); err != nil {
		return nil, err
	}
	return t.backfill(records, res.IDs)
}

// backfill copies the input records and writes generated identities into
// records that did not supply one. The identity column is never part of the
// compiled insert, so the executor generates an id for every submitted row
// and ids is parallel to records by position; a record that supplied its own
// identity keeps the caller's value and its positional id is discarded.
func (t *Table) backfill(records []Record, ids []int64) ([]Record, error) {
	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}
	identity := t.identityColumn(main)

	out := make([]Record, len(records))
	for i, rec := range records {
		cp := make(Record, len(rec)+1)
		for k, v := range rec {
			cp[k] = v
		}
		if identity != "" && i < len(ids) && cp.IsNull(identity) {
			cp[identity] = ids[i]
		}
		out[i] = cp
	}
	return out, nil
}

// Update applies the partial record to rows matching the filter. A context
// with no filter is refused; use UpdateAll to change every row.
func (t *Table) Update(ctx context.Context, partial Record) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	if t.where.empty() {
		return 0, ErrUnsafeUpdate
	}
	return t.execUpdate(ctx, t, partial)
}

// UpdateAll applies the partial record to every row. Requires the context to
// be opened with WithAllowUpdateAll; any filter on the context is ignored.
func (t *Table) UpdateAll(ctx context.Context, partial Record) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	if !t.allowUpdateAll {
		return 0, ErrUpdateAllDenied
	}
	nt := t.fork()
	nt.where = nil
	return t.execUpdate(ctx, nt, partial)
}

func (t *Table) execUpdate(ctx context.Context, src *Table, partial Record) (int64, error) {
	cmd, err := src.compileUpdate(partial)
	if err != nil {
		return 0, err
	}

	started := time.Now()
	n, err := t.exec.Update(ctx, cmd.SQL, cmd.Args)
	if err := t.run(cmd, n, err, started); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes rows matching the filter. A context with no filter is
// refused; use Truncate to empty the table.
func (t *Table) Delete(ctx context.Context) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	if t.where.empty() {
		return 0, ErrUnsafeDelete
	}
	cmd, err := t.compileDelete()
	if err != nil {
		return 0, err
	}

	started := time.Now()
	n, err := t.exec.Delete(ctx, cmd.SQL, cmd.Args)
	if err := t.run(cmd, n, err, started); err != nil {
		return 0, err
	}
	return n, nil
}

// Truncate removes every row. Requires the context to be opened with
// WithAllowTruncate. Implemented as unfiltered DELETE so it works across
// dialects and reports the removed row count.
func (t *Table) Truncate(ctx context.Context) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	if !t.allowTruncate {
		return 0, ErrTruncateDenied
	}
	cmd := t.compileTruncate()

	started := time.Now()
	n, err := t.exec.Delete(ctx, cmd.SQL, cmd.Args)
	if err := t.run(cmd, n, err, started); err != nil {
		return 0, err
	}
	return n, nil
}

// Describe waits for the lineage to settle and returns the table's schema.
func (t *Table) Describe(_ context.Context) (*Schema, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	return t.mainSchema()
}
