package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/coregx/nestq/internal/cache"
	"github.com/coregx/nestq/internal/dialects"
	"github.com/coregx/nestq/internal/logger"
	"github.com/coregx/nestq/internal/tracer"
)

// Logger is re-exported for executor options.
type Logger = logger.Logger

// Tracer is re-exported for executor options.
type Tracer = tracer.Tracer

// InsertResult reports the outcome of an insert command.
type InsertResult struct {
	// IDs holds the generated identity values in input-row order. Empty when
	// the dialect cannot report them or the table has no identity column.
	IDs  []int64
	Rows int64
}

// Executor runs compiled commands against a database. The default
// implementation is SQLExecutor; tests substitute fakes.
type Executor interface {
	Query(ctx context.Context, sqlText string, args []any) ([]Record, error)
	Count(ctx context.Context, sqlText string, args []any) (int64, error)
	Insert(ctx context.Context, sqlText string, args []any) (InsertResult, error)
	Update(ctx context.Context, sqlText string, args []any) (int64, error)
	Delete(ctx context.Context, sqlText string, args []any) (int64, error)
	Describe(ctx context.Context, table string) ([]Column, error)
	EscapeTable(name string) string
	EscapeColumn(name string) string
}

// eventSink receives command events from table contexts. SQLExecutor
// implements it to fan events into its logger, tracer, and global hooks.
type eventSink interface {
	emit(CommandEvent)
}

// SQLExecutor runs commands over database/sql with an LRU prepared-statement
// cache. Safe for concurrent use.
type SQLExecutor struct {
	db        *sql.DB
	dialect   dialects.Dialect
	stmts     *cache.StmtCache
	log       Logger
	sanitizer *logger.Sanitizer
	tracer    Tracer
	hooks     []CommandHook
}

// ExecutorOption configures a SQLExecutor.
type ExecutorOption func(*SQLExecutor)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l Logger) ExecutorOption {
	return func(e *SQLExecutor) { e.log = l }
}

// WithTracer sets the tracer. Defaults to a no-op tracer.
func WithTracer(t Tracer) ExecutorOption {
	return func(e *SQLExecutor) { e.tracer = t }
}

// WithSanitizer sets the argument sanitizer used for logging.
func WithSanitizer(s *logger.Sanitizer) ExecutorOption {
	return func(e *SQLExecutor) { e.sanitizer = s }
}

// WithGlobalHook registers a hook invoked for every command run through this
// executor, regardless of which table context issued it.
func WithGlobalHook(h CommandHook) ExecutorOption {
	return func(e *SQLExecutor) { e.hooks = append(e.hooks, h) }
}

// WithStmtCacheSize sets the prepared-statement cache capacity.
func WithStmtCacheSize(n int) ExecutorOption {
	return func(e *SQLExecutor) { e.stmts = cache.NewWithCapacity(n) }
}

// OpenExecutor opens a database connection for the named driver and wraps it.
func OpenExecutor(driver, dsn string, opts ...ExecutorOption) (*SQLExecutor, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return WrapDB(db, driver, opts...)
}

// WrapDB wraps an existing connection pool. The driver name selects the
// dialect: "mysql", "postgres", "sqlite", or "sqlite3".
func WrapDB(db *sql.DB, driver string, opts ...ExecutorOption) (*SQLExecutor, error) {
	d, ok := dialects.GetDialect(driver)
	if !ok {
		return nil, buildErrf("executor", "unsupported driver %q", driver)
	}
	e := &SQLExecutor{
		db:        db,
		dialect:   d,
		stmts:     cache.New(),
		log:       &logger.NoopLogger{},
		sanitizer: logger.NewSanitizer(),
		tracer:    &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// DB returns the underlying connection pool.
func (e *SQLExecutor) DB() *sql.DB {
	return e.db
}

// Close releases cached statements and closes the connection pool.
func (e *SQLExecutor) Close() error {
	e.stmts.Clear()
	return e.db.Close()
}

// EscapeTable quotes a table identifier for the active dialect.
func (e *SQLExecutor) EscapeTable(name string) string {
	return e.dialect.QuoteTable(name)
}

// EscapeColumn quotes a column identifier for the active dialect.
func (e *SQLExecutor) EscapeColumn(name string) string {
	return e.dialect.QuoteColumn(name)
}

// rewrite converts generic ? placeholders to the dialect's form.
func (e *SQLExecutor) rewrite(sqlText string) string {
	if e.dialect.Placeholder(1) == "?" {
		return sqlText
	}
	var b strings.Builder
	b.Grow(len(sqlText) + 8)
	n := 0
	for _, r := range sqlText {
		if r == '?' {
			n++
			b.WriteString(e.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e *SQLExecutor) prepare(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	if st, ok := e.stmts.Get(sqlText); ok {
		return st, nil
	}
	st, err := e.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	e.stmts.Set(sqlText, st)
	return st, nil
}

func (e *SQLExecutor) Query(ctx context.Context, sqlText string, args []any) ([]Record, error) {
	sqlText = e.rewrite(sqlText)
	e.log.Debug("query", "sql", sqlText, "args", e.sanitizer.FormatArgs(e.sanitizer.MaskArgs(sqlText, args)))

	st, err := e.prepare(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	rows, err := st.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (e *SQLExecutor) Count(ctx context.Context, sqlText string, args []any) (int64, error) {
	sqlText = e.rewrite(sqlText)
	e.log.Debug("count", "sql", sqlText, "args", e.sanitizer.FormatArgs(e.sanitizer.MaskArgs(sqlText, args)))

	st, err := e.prepare(ctx, sqlText)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := st.QueryRowContext(ctx, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (e *SQLExecutor) Insert(ctx context.Context, sqlText string, args []any) (InsertResult, error) {
	sqlText = e.rewrite(sqlText)
	e.log.Debug("insert", "sql", sqlText, "args", e.sanitizer.FormatArgs(e.sanitizer.MaskArgs(sqlText, args)))

	st, err := e.prepare(ctx, sqlText)
	if err != nil {
		return InsertResult{}, err
	}
	res, err := st.ExecContext(ctx, args...)
	if err != nil {
		return InsertResult{}, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		rows = 0
	}
	out := InsertResult{Rows: rows}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		out.IDs = e.dialect.InsertedIDs(id, rows)
	}
	return out, nil
}

func (e *SQLExecutor) Update(ctx context.Context, sqlText string, args []any) (int64, error) {
	return e.exec(ctx, "update", sqlText, args)
}

func (e *SQLExecutor) Delete(ctx context.Context, sqlText string, args []any) (int64, error) {
	return e.exec(ctx, "delete", sqlText, args)
}

func (e *SQLExecutor) exec(ctx context.Context, op, sqlText string, args []any) (int64, error) {
	sqlText = e.rewrite(sqlText)
	e.log.Debug(op, "sql", sqlText, "args", e.sanitizer.FormatArgs(e.sanitizer.MaskArgs(sqlText, args)))

	st, err := e.prepare(ctx, sqlText)
	if err != nil {
		return 0, err
	}
	res, err := st.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Describe queries the dialect's column catalog for table and returns its
// column descriptors in catalog order.
func (e *SQLExecutor) Describe(ctx context.Context, table string) ([]Column, error) {
	sqlText := e.dialect.DescribeSQL(table)
	e.log.Debug("describe", "table", table, "sql", sqlText)

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raw, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(raw))
	for _, r := range raw {
		info, ok := e.dialect.DescribeColumn(r)
		if !ok {
			continue
		}
		cols = append(cols, Column{
			Name:          info.Name,
			Nullable:      info.Nullable,
			PrimaryKey:    info.PrimaryKey,
			AutoIncrement: info.AutoIncrement,
			Default:       info.Default,
		})
	}
	if len(cols) == 0 {
		return nil, buildErrf("describe", "table %q has no columns or does not exist", table)
	}
	return cols, nil
}

// emit fans a settled command event into the executor's logger, tracer, and
// global hooks.
func (e *SQLExecutor) emit(ev CommandEvent) {
	_, span := e.tracer.StartSpan(context.Background(), "nestq."+strings.ToLower(string(ev.Operation)))
	tracer.AddCommandAttributes(span, &tracer.CommandMetadata{
		SQL:          ev.SQL,
		Table:        ev.Table,
		Operation:    string(ev.Operation),
		Duration:     ev.Duration,
		RowsAffected: ev.RowsAffected,
		Error:        ev.Err,
	})
	span.End()

	if ev.Err != nil {
		e.log.Error("command failed",
			"op", string(ev.Operation),
			"table", ev.Table,
			"sql", ev.SQL,
			"duration", ev.Duration.String(),
			"error", ev.Err.Error(),
		)
	} else {
		e.log.Info("command",
			"op", string(ev.Operation),
			"table", ev.Table,
			"sql", ev.SQL,
			"duration", ev.Duration.String(),
			"rows", ev.RowsAffected,
		)
	}

	for _, h := range e.hooks {
		h(ev)
	}
}

// scanRecords drains rows into generic records. Byte slices become strings so
// values compare and display predictably across drivers.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Record
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				rec[name] = string(b)
				continue
			}
			rec[name] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Executor = (*SQLExecutor)(nil)
var _ eventSink = (*SQLExecutor)(nil)
