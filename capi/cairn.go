// Command cairn builds the c-shared boundary library.
//
// Build with:
//
//	go build -buildmode=c-shared -o libcairn.so ./capi
//
// The stable consumer header lives in include/cairn.h; the cgo-generated
// header is an internal artifact. Objects cross the boundary as integer
// handles, payloads as C-heap buffers released through the matching
// cairn_*_free call.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>

typedef uintptr_t cairn_handle_t;

typedef struct {
	bool success;
	char *error_message;
} cairn_result_t;
*/
import "C"

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	cairngo "github.com/cairndb/cairngo"
	_ "github.com/cairndb/cairngo/memdriver"
)

const (
	errNullArguments = "invalid null arguments"
	errNullHandle    = "invalid null handle"
)

var (
	conns  = cairngo.NewHandleTable[*cairngo.Connection]()
	tables = cairngo.NewHandleTable[*cairngo.Table]()

	initOnce sync.Once
	logger   atomic.Pointer[cairngo.Logger]
)

func init() {
	logger.Store(cairngo.NoopLogger())
}

func activeLogger() *cairngo.Logger {
	return logger.Load()
}

// boundary runs one export body under the fault barrier. A panic anywhere
// in the body, conversion code included, becomes a failure envelope; the
// recovered value and stack go to the logger, never to the caller.
func boundary(op string, fn func() *C.cairn_result_t) (res *C.cairn_result_t) {
	defer func() {
		if r := recover(); r != nil {
			activeLogger().LogFault(context.Background(), op, r, debug.Stack())
			res = resultError(fmt.Sprintf("fault in %s", op))
		}
	}()
	return fn()
}

func newResult() *C.cairn_result_t {
	return (*C.cairn_result_t)(C.malloc(C.sizeof_cairn_result_t))
}

func resultOK() *C.cairn_result_t {
	r := newResult()
	r.success = C.bool(true)
	r.error_message = nil
	return r
}

func resultError(msg string) *C.cairn_result_t {
	r := newResult()
	r.success = C.bool(false)
	r.error_message = errMessage(msg)
	return r
}

// errMessage renders msg on the C heap. A message with an interior NUL
// cannot be a C string and degrades to a fixed sentinel, so error
// construction never fails.
func errMessage(msg string) *C.char {
	if strings.IndexByte(msg, 0) >= 0 {
		msg = "invalid error message"
	}
	return C.CString(msg)
}

func borrowConn(h C.cairn_handle_t) (*cairngo.Connection, *C.cairn_result_t) {
	conn, err := conns.Borrow(cairngo.Handle(h))
	if err != nil {
		return nil, resultError(err.Error())
	}
	return conn, nil
}

func borrowTable(h C.cairn_handle_t) (*cairngo.Table, *C.cairn_result_t) {
	tbl, err := tables.Borrow(cairngo.Handle(h))
	if err != nil {
		return nil, resultError(err.Error())
	}
	return tbl, nil
}

// goBytes copies a C buffer into Go memory. Boundary payloads stay well
// below the C.int limit GoBytes imposes.
func goBytes(data *C.uint8_t, n C.size_t) []byte {
	if n == 0 {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(data), C.int(n))
}

// setString hands a result payload to the caller. Marshalled JSON never
// contains a raw NUL (control characters are escaped), so the conversion
// is direct.
func setString(out **C.char, s []byte) {
	*out = C.CString(string(s))
}

func setBuffer(outData **C.uint8_t, outLen *C.size_t, b []byte) {
	*outData = (*C.uint8_t)(C.CBytes(b))
	*outLen = C.size_t(len(b))
}

//export cairn_init
func cairn_init() C.int {
	initOnce.Do(func() {
		l := cairngo.NewTextLogger(slog.LevelInfo)
		logger.Store(l)
		l.Info("cairn library initialized")
	})
	return 0
}

//export cairn_result_free
func cairn_result_free(result *C.cairn_result_t) {
	if result == nil {
		return
	}
	if result.error_message != nil {
		C.free(unsafe.Pointer(result.error_message))
	}
	C.free(unsafe.Pointer(result))
}

//export cairn_string_free
func cairn_string_free(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export cairn_buffer_free
func cairn_buffer_free(buf *C.uint8_t) {
	if buf != nil {
		C.free(unsafe.Pointer(buf))
	}
}

//export cairn_string_array_free
func cairn_string_array_free(strs **C.char, count C.int) {
	if strs == nil {
		return
	}
	for _, s := range unsafe.Slice(strs, int(count)) {
		if s != nil {
			C.free(unsafe.Pointer(s))
		}
	}
	C.free(unsafe.Pointer(strs))
}

//export cairn_connect
func cairn_connect(uri *C.char, outHandle *C.cairn_handle_t) *C.cairn_result_t {
	return boundary("cairn_connect", func() *C.cairn_result_t {
		if uri == nil || outHandle == nil {
			return resultError(errNullArguments)
		}

		conn, err := cairngo.Connect(C.GoString(uri), cairngo.WithLogger(activeLogger()))
		if err != nil {
			return resultError(err.Error())
		}
		*outHandle = C.cairn_handle_t(conns.Box(conn))
		return resultOK()
	})
}

//export cairn_connect_with_options
func cairn_connect_with_options(uri, optionsJSON *C.char, outHandle *C.cairn_handle_t) *C.cairn_result_t {
	return boundary("cairn_connect_with_options", func() *C.cairn_result_t {
		if uri == nil || optionsJSON == nil || outHandle == nil {
			return resultError(errNullArguments)
		}

		conn, err := cairngo.ConnectWithOptions(C.GoString(uri),
			[]byte(C.GoString(optionsJSON)),
			cairngo.WithLogger(activeLogger()))
		if err != nil {
			return resultError(err.Error())
		}
		*outHandle = C.cairn_handle_t(conns.Box(conn))
		return resultOK()
	})
}

//export cairn_disconnect
func cairn_disconnect(handle C.cairn_handle_t) *C.cairn_result_t {
	return boundary("cairn_disconnect", func() *C.cairn_result_t {
		if handle == 0 {
			return resultError(errNullHandle)
		}

		conn, err := conns.Unbox(cairngo.Handle(handle))
		if err != nil {
			return resultError(err.Error())
		}
		if err := conn.Close(); err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_table_names
func cairn_table_names(handle C.cairn_handle_t, outNames ***C.char, outCount *C.int) *C.cairn_result_t {
	return boundary("cairn_table_names", func() *C.cairn_result_t {
		if handle == 0 || outNames == nil || outCount == nil {
			return resultError(errNullArguments)
		}
		conn, errRes := borrowConn(handle)
		if errRes != nil {
			return errRes
		}

		names, err := conn.TableNames()
		if err != nil {
			return resultError(err.Error())
		}
		if len(names) == 0 {
			*outNames = nil
			*outCount = 0
			return resultOK()
		}

		arr := (**C.char)(C.malloc(C.size_t(len(names)) * C.size_t(unsafe.Sizeof((*C.char)(nil)))))
		slice := unsafe.Slice(arr, len(names))
		for i, name := range names {
			slice[i] = C.CString(name)
		}
		*outNames = arr
		*outCount = C.int(len(names))
		return resultOK()
	})
}

//export cairn_create_table
func cairn_create_table(handle C.cairn_handle_t, name, schemaJSON *C.char) *C.cairn_result_t {
	return boundary("cairn_create_table", func() *C.cairn_result_t {
		if handle == 0 || name == nil || schemaJSON == nil {
			return resultError(errNullArguments)
		}
		conn, errRes := borrowConn(handle)
		if errRes != nil {
			return errRes
		}

		if err := conn.CreateTable(C.GoString(name), []byte(C.GoString(schemaJSON))); err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_create_table_ipc
func cairn_create_table_ipc(handle C.cairn_handle_t, name *C.char, data *C.uint8_t, dataLen C.size_t) *C.cairn_result_t {
	return boundary("cairn_create_table_ipc", func() *C.cairn_result_t {
		if handle == 0 || name == nil || data == nil {
			return resultError(errNullArguments)
		}
		conn, errRes := borrowConn(handle)
		if errRes != nil {
			return errRes
		}

		if err := conn.CreateTableIPC(C.GoString(name), goBytes(data, dataLen)); err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_open_table
func cairn_open_table(handle C.cairn_handle_t, name *C.char, outTable *C.cairn_handle_t) *C.cairn_result_t {
	return boundary("cairn_open_table", func() *C.cairn_result_t {
		if handle == 0 || name == nil || outTable == nil {
			return resultError(errNullArguments)
		}
		conn, errRes := borrowConn(handle)
		if errRes != nil {
			return errRes
		}

		tbl, err := conn.OpenTable(C.GoString(name))
		if err != nil {
			return resultError(err.Error())
		}
		*outTable = C.cairn_handle_t(tables.Box(tbl))
		return resultOK()
	})
}

//export cairn_drop_table
func cairn_drop_table(handle C.cairn_handle_t, name *C.char) *C.cairn_result_t {
	return boundary("cairn_drop_table", func() *C.cairn_result_t {
		if handle == 0 || name == nil {
			return resultError(errNullArguments)
		}
		conn, errRes := borrowConn(handle)
		if errRes != nil {
			return errRes
		}

		if err := conn.DropTable(C.GoString(name)); err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_table_close
func cairn_table_close(table C.cairn_handle_t) *C.cairn_result_t {
	return boundary("cairn_table_close", func() *C.cairn_result_t {
		if table == 0 {
			return resultError(errNullHandle)
		}

		tbl, err := tables.Unbox(cairngo.Handle(table))
		if err != nil {
			return resultError(err.Error())
		}
		if err := tbl.Close(); err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_table_add_json
func cairn_table_add_json(table C.cairn_handle_t, json *C.char, outAdded *C.int64_t) *C.cairn_result_t {
	return boundary("cairn_table_add_json", func() *C.cairn_result_t {
		if table == 0 || json == nil || outAdded == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		n, err := tbl.AddJSON([]byte(C.GoString(json)))
		if err != nil {
			return resultError(err.Error())
		}
		*outAdded = C.int64_t(n)
		return resultOK()
	})
}

//export cairn_table_add_ipc
func cairn_table_add_ipc(table C.cairn_handle_t, data *C.uint8_t, dataLen C.size_t, outAdded *C.int64_t) *C.cairn_result_t {
	return boundary("cairn_table_add_ipc", func() *C.cairn_result_t {
		if table == 0 || data == nil || outAdded == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		n, err := tbl.AddIPC(goBytes(data, dataLen))
		if err != nil {
			return resultError(err.Error())
		}
		*outAdded = C.int64_t(n)
		return resultOK()
	})
}

//export cairn_table_delete
func cairn_table_delete(table C.cairn_handle_t, predicate *C.char, outDeleted *C.int64_t) *C.cairn_result_t {
	return boundary("cairn_table_delete", func() *C.cairn_result_t {
		if table == 0 || predicate == nil || outDeleted == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		n, err := tbl.Delete(C.GoString(predicate))
		if err != nil {
			return resultError(err.Error())
		}
		*outDeleted = C.int64_t(n)
		return resultOK()
	})
}

//export cairn_table_update
func cairn_table_update(table C.cairn_handle_t, predicate, updatesJSON *C.char) *C.cairn_result_t {
	return boundary("cairn_table_update", func() *C.cairn_result_t {
		if table == 0 || predicate == nil || updatesJSON == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		if err := tbl.Update(C.GoString(predicate), []byte(C.GoString(updatesJSON))); err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_table_query
func cairn_table_query(table C.cairn_handle_t, configJSON *C.char, outJSON **C.char) *C.cairn_result_t {
	return boundary("cairn_table_query", func() *C.cairn_result_t {
		if table == 0 || configJSON == nil || outJSON == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, err := tbl.Query([]byte(C.GoString(configJSON)))
		if err != nil {
			return resultError(err.Error())
		}
		setString(outJSON, out)
		return resultOK()
	})
}

//export cairn_table_query_ipc
func cairn_table_query_ipc(table C.cairn_handle_t, configJSON *C.char, outData **C.uint8_t, outLen *C.size_t) *C.cairn_result_t {
	return boundary("cairn_table_query_ipc", func() *C.cairn_result_t {
		if table == 0 || configJSON == nil || outData == nil || outLen == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, err := tbl.QueryIPC([]byte(C.GoString(configJSON)))
		if err != nil {
			return resultError(err.Error())
		}
		setBuffer(outData, outLen, out)
		return resultOK()
	})
}

//export cairn_table_create_index
func cairn_table_create_index(table C.cairn_handle_t, columnsJSON, indexType, indexName *C.char) *C.cairn_result_t {
	return boundary("cairn_table_create_index", func() *C.cairn_result_t {
		if table == 0 || columnsJSON == nil || indexType == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		// A null name lets the engine derive one from the column.
		name := ""
		if indexName != nil {
			name = C.GoString(indexName)
		}

		err := tbl.CreateIndex([]byte(C.GoString(columnsJSON)), C.GoString(indexType), name)
		if err != nil {
			return resultError(err.Error())
		}
		return resultOK()
	})
}

//export cairn_table_list_indexes
func cairn_table_list_indexes(table C.cairn_handle_t, outJSON **C.char) *C.cairn_result_t {
	return boundary("cairn_table_list_indexes", func() *C.cairn_result_t {
		if table == 0 || outJSON == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, err := tbl.ListIndexes()
		if err != nil {
			return resultError(err.Error())
		}
		setString(outJSON, out)
		return resultOK()
	})
}

//export cairn_table_index_stats
func cairn_table_index_stats(table C.cairn_handle_t, indexName *C.char, outJSON **C.char) *C.cairn_result_t {
	return boundary("cairn_table_index_stats", func() *C.cairn_result_t {
		if table == 0 || indexName == nil || outJSON == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, found, err := tbl.IndexStats(C.GoString(indexName))
		if err != nil {
			return resultError(err.Error())
		}
		// A missing index is a success with the out-param untouched.
		if found {
			setString(outJSON, out)
		}
		return resultOK()
	})
}

//export cairn_table_count_rows
func cairn_table_count_rows(table C.cairn_handle_t, outCount *C.int64_t) *C.cairn_result_t {
	return boundary("cairn_table_count_rows", func() *C.cairn_result_t {
		if table == 0 || outCount == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		n, err := tbl.CountRows()
		if err != nil {
			return resultError(err.Error())
		}
		*outCount = C.int64_t(n)
		return resultOK()
	})
}

//export cairn_table_version
func cairn_table_version(table C.cairn_handle_t, outVersion *C.uint64_t) *C.cairn_result_t {
	return boundary("cairn_table_version", func() *C.cairn_result_t {
		if table == 0 || outVersion == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		v, err := tbl.Version()
		if err != nil {
			return resultError(err.Error())
		}
		*outVersion = C.uint64_t(v)
		return resultOK()
	})
}

//export cairn_table_schema
func cairn_table_schema(table C.cairn_handle_t, outJSON **C.char) *C.cairn_result_t {
	return boundary("cairn_table_schema", func() *C.cairn_result_t {
		if table == 0 || outJSON == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, err := tbl.SchemaJSON()
		if err != nil {
			return resultError(err.Error())
		}
		setString(outJSON, out)
		return resultOK()
	})
}

//export cairn_table_schema_ipc
func cairn_table_schema_ipc(table C.cairn_handle_t, outData **C.uint8_t, outLen *C.size_t) *C.cairn_result_t {
	return boundary("cairn_table_schema_ipc", func() *C.cairn_result_t {
		if table == 0 || outData == nil || outLen == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, err := tbl.SchemaIPC()
		if err != nil {
			return resultError(err.Error())
		}
		setBuffer(outData, outLen, out)
		return resultOK()
	})
}

//export cairn_table_optimize
func cairn_table_optimize(table C.cairn_handle_t, outJSON **C.char) *C.cairn_result_t {
	return boundary("cairn_table_optimize", func() *C.cairn_result_t {
		if table == 0 || outJSON == nil {
			return resultError(errNullArguments)
		}
		tbl, errRes := borrowTable(table)
		if errRes != nil {
			return errRes
		}

		out, err := tbl.Optimize()
		if err != nil {
			return resultError(err.Error())
		}
		setString(outJSON, out)
		return resultOK()
	})
}

func main() {}
