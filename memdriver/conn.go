package memdriver

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cairndb/cairngo/driver"
)

type conn struct {
	db     *database
	closed atomic.Bool
}

var _ driver.Conn = (*conn)(nil)

func (c *conn) TableNames(_ context.Context) ([]string, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("connection %w", driver.ErrClosed)
	}

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	names := make([]string, 0, len(c.db.tables))
	for name := range c.db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *conn) CreateTable(_ context.Context, name string, schema *arrow.Schema) error {
	if c.closed.Load() {
		return fmt.Errorf("connection %w", driver.ErrClosed)
	}
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if schema == nil || schema.NumFields() == 0 {
		return fmt.Errorf("schema has no fields")
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if _, exists := c.db.tables[name]; exists {
		return fmt.Errorf("table %q: %w", name, driver.ErrTableExists)
	}
	c.db.tables[name] = newTable(name, schema)
	return nil
}

func (c *conn) OpenTable(_ context.Context, name string) (driver.Table, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("connection %w", driver.ErrClosed)
	}

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	t, ok := c.db.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, driver.ErrTableNotFound)
	}
	return &openTable{t: t}, nil
}

func (c *conn) DropTable(_ context.Context, name string) error {
	if c.closed.Load() {
		return fmt.Errorf("connection %w", driver.ErrClosed)
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	t, ok := c.db.tables[name]
	if !ok {
		return fmt.Errorf("table %q: %w", name, driver.ErrTableNotFound)
	}
	t.release()
	delete(c.db.tables, name)
	return nil
}

func (c *conn) Close(_ context.Context) error {
	c.closed.Store(true)
	return nil
}
