// Package cairngo exposes a columnar vector database through a stable,
// language-neutral boundary.
//
// The package is the Go side of a cross-language client: every operation
// takes and returns plain payloads (JSON documents, Arrow IPC containers,
// scalar counts) so the same surface can be re-exported over cgo to any
// host runtime. Engines plug in behind the driver registry; the in-process
// reference engine lives in the memdriver package.
//
// Features:
//
//   - Connection and table lifecycle with opaque, independently-closable handles
//   - Row ingestion from JSON documents or Arrow IPC record batches
//   - Plain scans with filter, projection, limit and offset
//   - Nearest-neighbour search returning a _distance column
//   - SQL-style delete and update with typed literal rendering
//   - Vector and scalar index management with per-index statistics
//   - Storage compaction and version pruning via Optimize
//   - Panic containment: an engine fault fails one call, never the process
//
// # Quick Start
//
//	conn, err := cairngo.Connect("mem://demo")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	schema := `{"fields": [
//		{"name": "id", "type": "int64", "nullable": false},
//		{"name": "vec", "type": "fixed_size_list[float32;128]"}
//	]}`
//	if err := conn.CreateTable("embeddings", []byte(schema)); err != nil {
//		log.Fatal(err)
//	}
//
//	tbl, err := conn.OpenTable("embeddings")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tbl.Close()
//
//	n, err := tbl.AddJSON(payload)
//	results, err := tbl.Query([]byte(`{
//		"vector_search": {"column": "vec", "vector": [0.1, 0.4], "k": 10}
//	}`))
//
// # The C Surface
//
// The capi directory builds a c-shared library re-exporting this package as
// cairn_* functions. Objects cross the boundary as integer handles issued
// by HandleTable; payloads cross as malloc'd buffers the caller frees. The
// boundary is synchronous and every call is independently safe.
//
// # Error Handling
//
// Sentinel errors (ErrTableNotFound, ErrTableExists, ErrIndexExists,
// ErrClosed) compose with errors.Is across the operation wrapping. Caller
// mistakes caught before the engine runs surface as *ArgumentError, and
// contained panics as *FaultError.
package cairngo
