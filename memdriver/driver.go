// Package memdriver provides the in-process reference engine.
//
// It keeps tables as immutable Arrow record fragments with roaring
// tombstone bitmaps, the same shape a columnar store uses on disk, so
// deletes and updates never rewrite existing fragments until Optimize
// compacts them. The engine registers under the "mem" and "file"
// schemes; a URI names a database identity within the process, so two
// connections to the same URI share tables.
//
// Column support follows the wire schema dialect. Tables created from
// richer Arrow schemas can be stored and appended to, but filtering,
// updating and projecting columns outside the dialect fails cleanly.
package memdriver

import (
	"context"
	"sync"

	"github.com/cairndb/cairngo/driver"
)

type memDriver struct {
	mu  sync.Mutex
	dbs map[string]*database
}

var shared = &memDriver{dbs: make(map[string]*database)}

func init() {
	driver.Register("mem", shared)
	driver.Register("file", shared)
}

func (d *memDriver) Open(_ context.Context, uri string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	db, ok := d.dbs[uri]
	if !ok {
		db = &database{tables: make(map[string]*table)}
		d.dbs[uri] = db
	}
	return &conn{db: db}, nil
}

type database struct {
	mu     sync.RWMutex
	tables map[string]*table
}
