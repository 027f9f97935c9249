package cairngo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cairndb/cairngo/codec"
	"github.com/cairndb/cairngo/driver"
)

// Table is a handle onto one table. Every operation is a single blocking
// round trip through the runtime bridge. Handles are independent: closing
// one does not affect other handles onto the same table.
type Table struct {
	name   string
	conn   *Connection
	tbl    driver.Table
	schema *arrow.Schema

	closed atomic.Bool
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) check() error {
	if t.closed.Load() {
		return fmt.Errorf("table %w", ErrClosed)
	}
	return nil
}

// AddJSON decodes a JSON document (an object or an array of objects)
// against the table schema and appends the rows. Returns the number of rows
// added. An empty array is a no-op reported as 0 rows.
func (t *Table) AddJSON(data []byte) (int64, error) {
	start := time.Now()
	n, err := t.addJSON(data)
	t.conn.metrics.RecordAppend(n, time.Since(start), err)
	t.conn.logger.LogAppend(context.Background(), t.name, n, err)
	return n, err
}

func (t *Table) addJSON(data []byte) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	rows, err := codec.ParseRows(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(rows) == 0 {
		// Nothing to decode or hand to the engine.
		return 0, nil
	}

	rec, err := codec.DecodeRows(rows, t.schema)
	if err != nil {
		return 0, fmt.Errorf("failed to convert JSON to record batch: %w", err)
	}
	defer rec.Release()

	return t.append([]arrow.Record{rec}, int64(len(data)))
}

// AddIPC appends the record batches of an Arrow IPC container.
// Returns the number of rows added.
func (t *Table) AddIPC(data []byte) (int64, error) {
	start := time.Now()
	n, err := t.addIPC(data)
	t.conn.metrics.RecordAppend(n, time.Since(start), err)
	t.conn.logger.LogAppend(context.Background(), t.name, n, err)
	return n, err
}

func (t *Table) addIPC(data []byte) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	_, recs, err := codec.DecodeRecords(data)
	if err != nil {
		return 0, fmt.Errorf("failed to read IPC data: %w", err)
	}
	defer releaseAll(recs)
	if len(recs) == 0 {
		return 0, nil
	}

	return t.append(recs, int64(len(data)))
}

func (t *Table) append(recs []arrow.Record, payloadBytes int64) (int64, error) {
	ctx := context.Background()
	if err := t.conn.res.AcquireIngest(ctx, int(payloadBytes)); err != nil {
		return 0, err
	}
	if err := t.conn.res.AcquireMemory(ctx, payloadBytes); err != nil {
		return 0, err
	}
	defer t.conn.res.ReleaseMemory(payloadBytes)

	n, err := run(t.conn, "add", func(ctx context.Context) (int64, error) {
		return t.tbl.Append(ctx, recs)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add data to table: %w", err)
	}
	return n, nil
}

// Delete removes rows matching the SQL predicate. The engine does not
// report how many rows matched, so a successful delete returns -1.
func (t *Table) Delete(predicate string) (int64, error) {
	start := time.Now()
	err := t.deleteRows(predicate)
	t.conn.metrics.RecordDelete(time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return -1, nil
}

func (t *Table) deleteRows(predicate string) error {
	if err := t.check(); err != nil {
		return err
	}

	_, err := run(t.conn, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.tbl.Delete(ctx, predicate)
	})
	if err != nil {
		return fmt.Errorf("failed to delete rows: %w", err)
	}
	return nil
}

// Update rewrites the rows matching the SQL predicate. updatesJSON is an
// object mapping column names to new values; strings, numbers, booleans
// and null are supported. An empty predicate updates every row.
func (t *Table) Update(predicate string, updatesJSON []byte) error {
	start := time.Now()
	err := t.updateRows(predicate, updatesJSON)
	t.conn.metrics.RecordUpdate(time.Since(start), err)
	return err
}

func (t *Table) updateRows(predicate string, updatesJSON []byte) error {
	if err := t.check(); err != nil {
		return err
	}

	updates, err := codec.ParseObject(updatesJSON)
	if err != nil {
		return fmt.Errorf("failed to parse updates JSON: %w", err)
	}

	assigns := make([]driver.Assignment, 0, len(updates))
	for column, value := range updates {
		lit, err := updateLiteral(column, value)
		if err != nil {
			return err
		}
		assigns = append(assigns, driver.Assignment{Column: column, Literal: lit})
	}
	// Map iteration order is random; keep the engine call deterministic.
	sort.Slice(assigns, func(i, j int) bool { return assigns[i].Column < assigns[j].Column })

	_, err = run(t.conn, "update", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.tbl.Update(ctx, predicate, assigns)
	})
	if err != nil {
		return fmt.Errorf("failed to update rows: %w", err)
	}
	return nil
}

// updateLiteral renders one update value as a SQL literal. Strings are
// quoted with embedded quotes doubled, numbers keep their JSON text,
// booleans pass through and null becomes the SQL null literal.
func updateLiteral(column string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported update value type for column %s", column)
	}
}

type vectorSearchConfig struct {
	Column string    `json:"column"`
	Vector []float32 `json:"vector"`
	K      *int      `json:"k"`
}

type ftsSearchConfig struct {
	Column string `json:"column"`
	Query  string `json:"query"`
}

// queryConfig is the wire form of one query. At most one search mode may
// be present.
type queryConfig struct {
	VectorSearch *vectorSearchConfig `json:"vector_search"`
	FTSSearch    *ftsSearchConfig    `json:"fts_search"`
	Columns      []string            `json:"columns"`
	Where        *string             `json:"where"`
	Limit        *int                `json:"limit"`
	Offset       *int                `json:"offset"`
}

// Query runs the query described by a JSON configuration document and
// returns the matching rows as a JSON array of row objects.
func (t *Table) Query(configJSON []byte) ([]byte, error) {
	start := time.Now()
	out, rows, err := t.runQuery(configJSON, false)
	t.conn.metrics.RecordQuery(rows, time.Since(start), err)
	t.conn.logger.LogQuery(context.Background(), t.name, rows, err)
	return out, err
}

// QueryIPC runs the query described by a JSON configuration document and
// returns the matching rows as an Arrow IPC container. The projected
// schema is recoverable from the container even when no rows match.
func (t *Table) QueryIPC(configJSON []byte) ([]byte, error) {
	start := time.Now()
	out, rows, err := t.runQuery(configJSON, true)
	t.conn.metrics.RecordQuery(rows, time.Since(start), err)
	t.conn.logger.LogQuery(context.Background(), t.name, rows, err)
	return out, err
}

func (t *Table) runQuery(configJSON []byte, ipc bool) ([]byte, int64, error) {
	if err := t.check(); err != nil {
		return nil, 0, err
	}

	q, err := t.parseQueryConfig(configJSON)
	if err != nil {
		return nil, 0, err
	}

	recs, err := run(t.conn, "query", func(ctx context.Context) ([]arrow.Record, error) {
		return t.tbl.Query(ctx, q)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer releaseAll(recs)

	var total int64
	for _, rec := range recs {
		total += rec.NumRows()
	}

	if ipc {
		out, err := codec.EncodeRecords(recs[0].Schema(), recs)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode IPC results: %w", err)
		}
		return out, total, nil
	}

	rows := make([]codec.Row, 0, total)
	for _, rec := range recs {
		rows = append(rows, codec.EncodeRows(rec)...)
	}
	out, err := t.conn.codec.Marshal(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to serialize results to JSON: %w", err)
	}
	return out, total, nil
}

func (t *Table) parseQueryConfig(configJSON []byte) (driver.Query, error) {
	var cfg queryConfig
	if err := t.conn.codec.Unmarshal(configJSON, &cfg); err != nil {
		return driver.Query{}, fmt.Errorf("failed to parse query config: %w", err)
	}

	if cfg.VectorSearch != nil && cfg.FTSSearch != nil {
		return driver.Query{}, &ArgumentError{
			Op:     "query",
			Reason: "vector_search and fts_search cannot be combined",
		}
	}
	if cfg.FTSSearch != nil {
		return driver.Query{}, ErrFTSUnsupported
	}

	q := driver.Query{Limit: -1}
	if len(cfg.Columns) > 0 {
		q.Columns = cfg.Columns
	}
	if cfg.Where != nil {
		q.Filter = *cfg.Where
	}
	if cfg.Limit != nil {
		q.Limit = *cfg.Limit
	}
	if cfg.Offset != nil {
		q.Offset = *cfg.Offset
	}

	if vs := cfg.VectorSearch; vs != nil {
		if vs.Column == "" || len(vs.Vector) == 0 || vs.K == nil {
			return driver.Query{}, &ArgumentError{
				Op:     "query",
				Reason: "vector_search requires column, vector and k",
			}
		}
		q.Vector = &driver.VectorQuery{Column: vs.Column, Vector: vs.Vector, K: *vs.K}
		if cfg.Limit == nil {
			q.Limit = *vs.K
		}
		// Nearest-neighbor results are not paginated.
		q.Offset = 0
	}

	return q, nil
}

type indexInfo struct {
	Name      string   `json:"name"`
	Columns   []string `json:"columns"`
	IndexType string   `json:"index_type"`
}

// CreateIndex builds an index over the given columns. columnsJSON is a
// JSON array of column names, indexType one of the supported type tags
// (e.g. "ivf_pq", "btree", "fts"), and name optionally overrides the
// engine-derived index name.
func (t *Table) CreateIndex(columnsJSON []byte, indexType, name string) error {
	if err := t.check(); err != nil {
		return err
	}

	var columns []string
	if err := t.conn.codec.Unmarshal(columnsJSON, &columns); err != nil {
		return fmt.Errorf("failed to parse columns JSON: %w", err)
	}
	if len(columns) == 0 {
		return &ArgumentError{Op: "create_index", Reason: "columns list cannot be empty"}
	}

	typ, err := driver.ParseIndexType(indexType)
	if err != nil {
		return err
	}

	spec := driver.IndexSpec{
		Name:    name,
		Columns: columns,
		Type:    typ,
		Params:  driver.DefaultIndexParams(typ),
	}
	_, err = run(t.conn, "create_index", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.tbl.CreateIndex(ctx, spec)
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// ListIndexes returns the table's indexes as a JSON array of
// {name, columns, index_type} objects.
func (t *Table) ListIndexes() ([]byte, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	cfgs, err := run(t.conn, "list_indexes", func(ctx context.Context) ([]driver.IndexConfig, error) {
		return t.tbl.ListIndexes(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}

	infos := make([]indexInfo, 0, len(cfgs))
	for _, cfg := range cfgs {
		infos = append(infos, indexInfo{
			Name:      cfg.Name,
			Columns:   cfg.Columns,
			IndexType: cfg.Type.String(),
		})
	}
	out, err := t.conn.codec.Marshal(infos)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize indexes to JSON: %w", err)
	}
	return out, nil
}

// indexStatsDoc is the wire form of index statistics. Fields the engine
// does not report are omitted.
type indexStatsDoc struct {
	NumIndexedRows   int64    `json:"num_indexed_rows"`
	NumUnindexedRows int64    `json:"num_unindexed_rows"`
	IndexType        string   `json:"index_type"`
	DistanceType     string   `json:"distance_type,omitempty"`
	NumIndices       int      `json:"num_indices,omitempty"`
	Loss             *float64 `json:"loss,omitempty"`
}

// IndexStats returns statistics for the named index as a JSON document.
// A missing index is not an error: found reports whether it exists.
func (t *Table) IndexStats(name string) (stats []byte, found bool, err error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}

	type result struct {
		stats *driver.IndexStats
		found bool
	}
	res, err := run(t.conn, "index_stats", func(ctx context.Context) (result, error) {
		s, ok, err := t.tbl.IndexStats(ctx, name)
		return result{stats: s, found: ok}, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get index stats: %w", err)
	}
	if !res.found {
		return nil, false, nil
	}

	doc := indexStatsDoc{
		NumIndexedRows:   res.stats.NumIndexedRows,
		NumUnindexedRows: res.stats.NumUnindexedRows,
		IndexType:        res.stats.Type.String(),
		DistanceType:     res.stats.DistanceType,
		NumIndices:       res.stats.NumIndices,
	}
	if res.stats.Loss >= 0 {
		doc.Loss = &res.stats.Loss
	}
	out, err := t.conn.codec.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to serialize index stats to JSON: %w", err)
	}
	return out, true, nil
}

// CountRows returns the number of live rows.
func (t *Table) CountRows() (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	n, err := run(t.conn, "count_rows", func(ctx context.Context) (int64, error) {
		return t.tbl.CountRows(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Version returns the table version. Versions start at 1 and grow with
// every mutation.
func (t *Table) Version() (uint64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	v, err := run(t.conn, "version", func(ctx context.Context) (uint64, error) {
		return t.tbl.Version(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get table version: %w", err)
	}
	return v, nil
}

// SchemaJSON returns the current table schema as a JSON schema document.
// The schema is fetched from the engine, not the handle cache, so it
// reflects evolution by other writers.
func (t *Table) SchemaJSON() ([]byte, error) {
	schema, err := t.fetchSchema()
	if err != nil {
		return nil, err
	}

	out, err := codec.EncodeSchemaJSON(t.conn.codec, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema: %w", err)
	}
	return out, nil
}

// SchemaIPC returns the current table schema as a schema-only Arrow IPC
// container.
func (t *Table) SchemaIPC() ([]byte, error) {
	schema, err := t.fetchSchema()
	if err != nil {
		return nil, err
	}

	out, err := codec.EncodeSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode IPC schema: %w", err)
	}
	return out, nil
}

func (t *Table) fetchSchema() (*arrow.Schema, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	schema, err := run(t.conn, "schema", func(ctx context.Context) (*arrow.Schema, error) {
		return t.tbl.Schema(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get table schema: %w", err)
	}
	return schema, nil
}

// optimizeStatsDoc is the wire form of optimize statistics.
type optimizeStatsDoc struct {
	Compaction struct {
		FragmentsRemoved int64 `json:"fragments_removed"`
		FragmentsAdded   int64 `json:"fragments_added"`
		FilesRemoved     int64 `json:"files_removed"`
		FilesAdded       int64 `json:"files_added"`
	} `json:"compaction"`
	Prune struct {
		BytesRemoved int64 `json:"bytes_removed"`
		OldVersions  int64 `json:"old_versions"`
	} `json:"prune"`
}

// Optimize compacts table storage and prunes stale data, returning the
// compaction and prune statistics as a JSON document.
func (t *Table) Optimize() ([]byte, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	stats, err := run(t.conn, "optimize", func(ctx context.Context) (driver.OptimizeStats, error) {
		return t.tbl.Optimize(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to optimize table: %w", err)
	}

	var doc optimizeStatsDoc
	doc.Compaction.FragmentsRemoved = stats.Compaction.FragmentsRemoved
	doc.Compaction.FragmentsAdded = stats.Compaction.FragmentsAdded
	doc.Compaction.FilesRemoved = stats.Compaction.FilesRemoved
	doc.Compaction.FilesAdded = stats.Compaction.FilesAdded
	doc.Prune.BytesRemoved = stats.Prune.BytesRemoved
	doc.Prune.OldVersions = stats.Prune.OldVersions

	out, err := t.conn.codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize optimize stats to JSON: %w", err)
	}
	return out, nil
}

// Close releases this handle. Idempotent. Other handles onto the same
// table and the owning connection are unaffected.
func (t *Table) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	_, err := run(t.conn, "table_close", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.tbl.Close(ctx)
	})
	return err
}
