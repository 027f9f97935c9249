package cairngo_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/cairndb/cairngo"
	_ "github.com/cairndb/cairngo/memdriver"
)

// Example_quickstart demonstrates the connect, ingest and query cycle.
func Example_quickstart() {
	conn, err := cairngo.Connect("mem://example-quickstart")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	schema := `{"fields": [
		{"name": "title", "type": "string", "nullable": false},
		{"name": "rating", "type": "float64", "nullable": true}
	]}`
	if err := conn.CreateTable("films", []byte(schema)); err != nil {
		log.Fatal(err)
	}

	tbl, err := conn.OpenTable("films")
	if err != nil {
		log.Fatal(err)
	}
	defer tbl.Close()

	n, err := tbl.AddJSON([]byte(`[
		{"title": "Arrival", "rating": 7.9},
		{"title": "Dune", "rating": 8.0},
		{"title": "Solaris", "rating": 8.1}
	]`))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Appended %d rows\n", n)

	out, err := tbl.Query([]byte(`{"columns": ["title"], "where": "rating >= 8.0"}`))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
	// Output:
	// Appended 3 rows
	// [{"title":"Dune"},{"title":"Solaris"}]
}

// Example_vectorSearch demonstrates a nearest-neighbour query over an
// embedding column.
func Example_vectorSearch() {
	conn, err := cairngo.Connect("mem://example-vector-search")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	schema := `{"fields": [
		{"name": "doc", "type": "string", "nullable": false},
		{"name": "embedding", "type": "fixed_size_list[float32;3]", "nullable": true}
	]}`
	if err := conn.CreateTable("docs", []byte(schema)); err != nil {
		log.Fatal(err)
	}

	tbl, err := conn.OpenTable("docs")
	if err != nil {
		log.Fatal(err)
	}
	defer tbl.Close()

	if _, err := tbl.AddJSON([]byte(`[
		{"doc": "red", "embedding": [1, 0, 0]},
		{"doc": "green", "embedding": [0, 1, 0]},
		{"doc": "blue", "embedding": [0, 0, 1]}
	]`)); err != nil {
		log.Fatal(err)
	}

	out, err := tbl.Query([]byte(`{
		"columns": ["doc"],
		"vector_search": {"column": "embedding", "vector": [1, 0, 0], "k": 1}
	}`))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
	// Output: [{"_distance":0,"doc":"red"}]
}

// Example_indexStats demonstrates building a vector index and reading its
// statistics document.
func Example_indexStats() {
	conn, err := cairngo.Connect("mem://example-index-stats")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	schema := `{"fields": [
		{"name": "id", "type": "int64", "nullable": false},
		{"name": "vec", "type": "fixed_size_list[float32;2]", "nullable": true}
	]}`
	if err := conn.CreateTable("items", []byte(schema)); err != nil {
		log.Fatal(err)
	}

	tbl, err := conn.OpenTable("items")
	if err != nil {
		log.Fatal(err)
	}
	defer tbl.Close()

	if _, err := tbl.AddJSON([]byte(`[
		{"id": 1, "vec": [0, 0]},
		{"id": 2, "vec": [1, 0]},
		{"id": 3, "vec": [0, 1]}
	]`)); err != nil {
		log.Fatal(err)
	}

	if err := tbl.CreateIndex([]byte(`["vec"]`), "vector", ""); err != nil {
		log.Fatal(err)
	}

	stats, found, err := tbl.IndexStats("vec_idx")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(found)
	fmt.Println(string(stats))
	// Output:
	// true
	// {"num_indexed_rows":3,"num_unindexed_rows":0,"index_type":"IVF_PQ","distance_type":"l2","num_indices":1}
}

// Example_errors demonstrates matching catalog failures with errors.Is.
func Example_errors() {
	conn, err := cairngo.Connect("mem://example-errors")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	_, err = conn.OpenTable("missing")
	fmt.Println(errors.Is(err, cairngo.ErrTableNotFound))
	// Output: true
}
