package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under a URI scheme. It panics on a
// nil driver or a duplicate scheme, mirroring database/sql.
func Register(scheme string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("driver: Register driver is nil")
	}
	if _, dup := drivers[scheme]; dup {
		panic("driver: Register called twice for scheme " + scheme)
	}
	drivers[scheme] = d
}

// Drivers returns the registered schemes in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	list := make([]string, 0, len(drivers))
	for scheme := range drivers {
		list = append(list, scheme)
	}
	sort.Strings(list)
	return list
}

// Open resolves the driver for the URI scheme and opens a connection.
// A URI without a scheme addresses local storage and resolves to "file".
func Open(ctx context.Context, uri string) (Conn, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found {
		scheme = "file"
	}

	driversMu.RLock()
	d, ok := drivers[scheme]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver scheme %q (forgotten import?)", scheme)
	}
	return d.Open(ctx, uri)
}
