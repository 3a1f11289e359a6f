// Package nestq provides a relational query and command builder for Go with
// first-class relationship support for PostgreSQL, MySQL, and SQLite. Table
// contexts are immutable and fork on every builder call, relationships
// declared as hasOne/hasMany come back from queries as nested records, and
// schemas resolve in the background so construction never blocks.
package nestq

import (
	"github.com/coregx/nestq/internal/core"
)

type (
	// Table is an immutable query context bound to one table.
	Table = core.Table
	// Option is a functional option for configuring a table context.
	Option = core.Option
	// Record is one table row, with relationship data nested under the
	// relationship name.
	Record = core.Record
	// Schema describes a table's columns.
	Schema = core.Schema
	// Column describes one table column.
	Column = core.Column

	// Executor runs compiled commands against a database.
	Executor = core.Executor
	// SQLExecutor is the database/sql-backed executor.
	SQLExecutor = core.SQLExecutor
	// ExecutorOption is a functional option for configuring a SQLExecutor.
	ExecutorOption = core.ExecutorOption
	// InsertResult reports generated identities and affected rows.
	InsertResult = core.InsertResult

	// Row resolves column and relationship references in Where callbacks.
	Row = core.Row
	// Cond is a column reference awaiting a comparison.
	Cond = core.Cond
	// Chain continues a filter after a completed comparison.
	Chain = core.Chain

	// RelationBuilder configures a declared relationship.
	RelationBuilder = core.RelationBuilder
	// IncludeChain descends through included relationships.
	IncludeChain = core.IncludeChain
	// Relation is one node of a table's relationship tree.
	Relation = core.Relation
	// Cardinality distinguishes 1:1 from 1:n relationships.
	Cardinality = core.Cardinality

	// Sorting collects ORDER BY keys.
	Sorting = core.Sorting
	// Grouping collects GROUP BY columns and aggregates.
	Grouping = core.Grouping
	// Projection collects an explicit selection list.
	Projection = core.Projection
	// SortKey is one ORDER BY entry.
	SortKey = core.SortKey
	// SelectedColumn is one entry of a projection override.
	SelectedColumn = core.SelectedColumn

	// Operation identifies the kind of an executed command.
	Operation = core.Operation
	// Command is a compiled SQL command.
	Command = core.Command
	// CommandEvent describes one executed command.
	CommandEvent = core.CommandEvent
	// CommandHook observes executed commands.
	CommandHook = core.CommandHook
	// BuildError reports malformed builder usage.
	BuildError = core.BuildError
	// CommandError wraps an executor failure with its command context.
	CommandError = core.CommandError
)

// Relationship cardinalities.
const (
	One  = core.One
	Many = core.Many
)

// Command operations, as reported in events and errors.
const (
	OpSelect   = core.OpSelect
	OpCount    = core.OpCount
	OpInsert   = core.OpInsert
	OpUpdate   = core.OpUpdate
	OpDelete   = core.OpDelete
	OpDescribe = core.OpDescribe
)

// Re-export core functions.
var (
	New          = core.New
	OpenExecutor = core.OpenExecutor
	WrapDB       = core.WrapDB
	Interpolate  = core.Interpolate

	// Table context options
	WithIdentity         = core.WithIdentity
	WithSortedInsertKeys = core.WithSortedInsertKeys
	WithAllowUpdateAll   = core.WithAllowUpdateAll
	WithAllowTruncate    = core.WithAllowTruncate
	WithHook             = core.WithHook
	WithHookFor          = core.WithHookFor

	// Executor options
	WithLogger        = core.WithLogger
	WithTracer        = core.WithTracer
	WithSanitizer     = core.WithSanitizer
	WithGlobalHook    = core.WithGlobalHook
	WithStmtCacheSize = core.WithStmtCacheSize
)

// Predefined errors returned by terminal operations.
var (
	ErrUnsafeUpdate    = core.ErrUnsafeUpdate
	ErrUpdateAllDenied = core.ErrUpdateAllDenied
	ErrUnsafeDelete    = core.ErrUnsafeDelete
	ErrTruncateDenied  = core.ErrTruncateDenied
	ErrEmptyRecord     = core.ErrEmptyRecord
	ErrSkipWithoutTake = core.ErrSkipWithoutTake
)
