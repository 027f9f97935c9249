package driver

import "errors"

var (
	// ErrTableNotFound is returned when opening or dropping a table that
	// does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned when creating a table whose name is
	// taken.
	ErrTableExists = errors.New("table already exists")

	// ErrIndexExists is returned when creating an index whose name is
	// taken.
	ErrIndexExists = errors.New("index already exists")

	// ErrClosed is returned for operations on a closed connection or
	// table.
	ErrClosed = errors.New("closed")
)
