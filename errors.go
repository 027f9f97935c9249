package cairngo

import (
	"errors"
	"fmt"

	"github.com/cairndb/cairngo/driver"
)

var (
	// ErrTableNotFound is returned when a table does not exist.
	ErrTableNotFound = driver.ErrTableNotFound

	// ErrTableExists is returned when creating a table that already exists.
	ErrTableExists = driver.ErrTableExists

	// ErrIndexExists is returned when creating an index whose name is taken.
	ErrIndexExists = driver.ErrIndexExists

	// ErrClosed is returned when operating on a closed connection or table.
	ErrClosed = driver.ErrClosed

	// ErrInvalidHandle is returned for a handle that was never issued or
	// has already been unboxed.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrFTSUnsupported is returned for full-text search requests.
	ErrFTSUnsupported = errors.New("full-text search is not currently supported")
)

// ArgumentError indicates a caller-supplied argument that failed validation
// before any engine call was made.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ArgumentError struct {
	Op     string
	Reason string
	cause  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return e.cause }

// FaultError indicates a runtime fault (panic) contained by the boundary.
// The call failed, but the process and all other handles remain usable.
//
// The message is deliberately generic. The recovered value and stack are
// available on the struct and through the structured logger, not in the
// error string that may cross the C boundary.
type FaultError struct {
	Op        string
	Recovered any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("fault in %s", e.Op)
}
