package cairngo

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cairndb/cairngo/codec"
	"github.com/cairndb/cairngo/driver"
	"github.com/cairndb/cairngo/internal/resource"
	"github.com/cairndb/cairngo/storage"
)

// Connection is an open database session. It is safe for concurrent use by
// multiple goroutines. Close is idempotent.
type Connection struct {
	uri     string
	conn    driver.Conn
	codec   codec.Codec
	logger  *Logger
	metrics MetricsCollector
	res     *resource.Controller

	closed atomic.Bool
}

// Connect opens the database at uri. The URI scheme selects a registered
// engine driver; a URI without a scheme selects the file driver.
func Connect(uri string, optFns ...Option) (*Connection, error) {
	return ConnectWithOptions(uri, nil, optFns...)
}

// ConnectWithOptions opens the database at uri after staging the storage
// options document into the process environment, where the engine's
// credential chain picks it up. Empty options behave like Connect.
func ConnectWithOptions(uri string, storageOptions []byte, optFns ...Option) (*Connection, error) {
	opts := applyOptions(optFns)

	c := &Connection{
		uri:     uri,
		codec:   opts.codec,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		res: resource.NewController(resource.Config{
			MaxConcurrentCalls:     opts.resources.MaxConcurrentCalls,
			IngestLimitBytesPerSec: opts.resources.IngestLimitBytesPerSec,
			MemoryLimitBytes:       opts.resources.MemoryLimitBytes,
		}),
	}

	start := time.Now()
	conn, err := c.connect(storageOptions)
	c.metrics.RecordConnect(time.Since(start), err)
	c.logger.LogConnect(context.Background(), uri, err)
	if err != nil {
		return nil, err
	}

	c.conn = conn
	return c, nil
}

func (c *Connection) connect(storageOptions []byte) (driver.Conn, error) {
	if c.uri == "" {
		return nil, &ArgumentError{Op: "connect", Reason: "URI cannot be empty"}
	}

	if len(storageOptions) > 0 {
		sopts, err := storage.ParseOptions(c.codec, storageOptions)
		if err != nil {
			return nil, err
		}
		if err := sopts.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	// Engine errors pass through unwrapped here so the caller sees
	// exactly what the driver reported for the URI.
	return run(c, "connect", func(ctx context.Context) (driver.Conn, error) {
		return driver.Open(ctx, c.uri)
	})
}

// URI returns the URI this connection was opened with.
func (c *Connection) URI() string {
	return c.uri
}

func (c *Connection) check() error {
	if c.closed.Load() {
		return fmt.Errorf("connection %w", ErrClosed)
	}
	return nil
}

// TableNames lists the tables of the database, sorted by name.
func (c *Connection) TableNames() ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return run(c, "table_names", func(ctx context.Context) ([]string, error) {
		return c.conn.TableNames(ctx)
	})
}

// CreateTable creates an empty table from a JSON schema document.
func (c *Connection) CreateTable(name string, schemaJSON []byte) error {
	if err := c.check(); err != nil {
		return err
	}

	schema, err := codec.ParseSchemaJSON(c.codec, schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	return c.createTable(name, schema, nil)
}

// CreateTableIPC creates a table from an Arrow IPC container. The container
// schema defines the table and any contained records become its initial
// rows.
func (c *Connection) CreateTableIPC(name string, data []byte) error {
	if err := c.check(); err != nil {
		return err
	}

	schema, recs, err := codec.DecodeRecords(data)
	if err != nil {
		return fmt.Errorf("failed to read IPC schema: %w", err)
	}
	defer releaseAll(recs)

	return c.createTable(name, schema, recs)
}

func (c *Connection) createTable(name string, schema *arrow.Schema, initial []arrow.Record) error {
	_, err := run(c, "create_table", func(ctx context.Context) (struct{}, error) {
		if err := c.conn.CreateTable(ctx, name, schema); err != nil {
			return struct{}{}, err
		}
		if len(initial) == 0 {
			return struct{}{}, nil
		}

		tbl, err := c.conn.OpenTable(ctx, name)
		if err != nil {
			return struct{}{}, err
		}
		defer func() { _ = tbl.Close(ctx) }()

		_, err = tbl.Append(ctx, initial)
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// OpenTable opens an existing table. The returned table caches its schema,
// so decoding row payloads does not cost an engine round trip per call.
func (c *Connection) OpenTable(name string) (*Table, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	type opened struct {
		tbl    driver.Table
		schema *arrow.Schema
	}
	res, err := run(c, "open_table", func(ctx context.Context) (opened, error) {
		tbl, err := c.conn.OpenTable(ctx, name)
		if err != nil {
			return opened{}, err
		}

		schema, err := tbl.Schema(ctx)
		if err != nil {
			_ = tbl.Close(ctx)
			return opened{}, err
		}
		return opened{tbl: tbl, schema: schema}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}

	return &Table{
		name:   name,
		conn:   c,
		tbl:    res.tbl,
		schema: res.schema,
	}, nil
}

// DropTable removes a table and its data. Open handles onto the table
// observe ErrTableNotFound afterwards.
func (c *Connection) DropTable(name string) error {
	if err := c.check(); err != nil {
		return err
	}

	_, err := run(c, "drop_table", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.conn.DropTable(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return nil
}

// Close releases the connection. Idempotent; operations after Close return
// ErrClosed. Tables opened from this connection keep their own lifetime and
// are closed separately.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	_, err := run(c, "disconnect", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.conn.Close(ctx)
	})
	return err
}

func releaseAll(recs []arrow.Record) {
	for _, rec := range recs {
		rec.Release()
	}
}
