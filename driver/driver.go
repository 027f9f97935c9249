// Package driver defines the contract between the boundary facade and a
// database engine, plus a registry keyed by URI scheme.
//
// Engines register themselves at init time, the way database/sql drivers
// do, and the facade resolves them from the connection URI. All methods
// take a context because engines are free to do real I/O; the in-process
// reference engine simply ignores deadlines.
package driver

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// Driver opens connections to databases addressed by URI.
type Driver interface {
	Open(ctx context.Context, uri string) (Conn, error)
}

// Conn is an open database. Implementations must be safe for concurrent
// use.
type Conn interface {
	// TableNames lists the tables of the database in sorted order.
	TableNames(ctx context.Context) ([]string, error)

	// CreateTable creates an empty table. It fails with ErrTableExists
	// when the name is taken.
	CreateTable(ctx context.Context, name string, schema *arrow.Schema) error

	// OpenTable opens an existing table or fails with ErrTableNotFound.
	OpenTable(ctx context.Context, name string) (Table, error)

	// DropTable removes a table and its data.
	DropTable(ctx context.Context, name string) error

	// Close releases the connection. Tables opened from it stay usable
	// only if the engine allows that; callers should not rely on it.
	Close(ctx context.Context) error
}

// Table is an open table. Implementations must be safe for concurrent
// use.
type Table interface {
	// Schema returns the table schema.
	Schema(ctx context.Context) (*arrow.Schema, error)

	// Append adds record batches and returns the number of rows added.
	Append(ctx context.Context, recs []arrow.Record) (int64, error)

	// Delete removes all rows matching the predicate.
	Delete(ctx context.Context, predicate string) error

	// Update rewrites the assigned columns of all rows matching the
	// predicate. An empty predicate matches every row.
	Update(ctx context.Context, predicate string, assigns []Assignment) error

	// Query runs a scan or vector search. The result always contains at
	// least one record so callers can recover the projected schema even
	// when no rows match. The caller owns the records and must Release
	// them.
	Query(ctx context.Context, q Query) ([]arrow.Record, error)

	// CreateIndex builds an index described by spec.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// ListIndexes returns the configured indexes.
	ListIndexes(ctx context.Context) ([]IndexConfig, error)

	// IndexStats reports statistics for a named index. The second result
	// is false when no such index exists; that is not an error.
	IndexStats(ctx context.Context, name string) (*IndexStats, bool, error)

	// CountRows returns the number of live rows.
	CountRows(ctx context.Context) (int64, error)

	// Version returns the table version, which increases with every
	// mutation.
	Version(ctx context.Context) (uint64, error)

	// Optimize compacts fragments and prunes dead data.
	Optimize(ctx context.Context) (OptimizeStats, error)

	// Close releases the table.
	Close(ctx context.Context) error
}

// Assignment sets one column to a SQL literal during Update.
type Assignment struct {
	Column  string
	Literal string
}

// VectorQuery is the nearest-neighbour part of a Query.
type VectorQuery struct {
	Column string
	Vector []float32
	K      int
}

// Query describes a table read. The facade resolves limits before the
// engine sees them: for vector queries Limit is already k unless the
// caller overrode it.
type Query struct {
	// Filter is a SQL-subset predicate, empty for no filtering.
	Filter string

	// Columns projects the result. Empty means all columns.
	Columns []string

	// Limit caps returned rows. Negative means unlimited.
	Limit int

	// Offset skips leading rows. Only meaningful for plain scans.
	Offset int

	// Vector, when set, turns the query into a nearest-neighbour search
	// that returns a _distance column.
	Vector *VectorQuery
}

// OptimizeStats summarizes one Optimize run.
type OptimizeStats struct {
	Compaction CompactionStats
	Prune      PruneStats
}

// CompactionStats counts fragment rewrites.
type CompactionStats struct {
	FragmentsRemoved int64
	FragmentsAdded   int64
	FilesRemoved     int64
	FilesAdded       int64
}

// PruneStats counts removed historical data.
type PruneStats struct {
	BytesRemoved int64
	OldVersions  int64
}
