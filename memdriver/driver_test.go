package memdriver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairndb/cairngo/codec"
	"github.com/cairndb/cairngo/driver"
)

func testSchema(t *testing.T) *arrow.Schema {
	t.Helper()

	schema, err := codec.ParseSchemaJSON(nil, []byte(`{"fields":[
		{"name":"id","type":"int64","nullable":false},
		{"name":"category","type":"string"},
		{"name":"score","type":"float64"},
		{"name":"vec","type":"fixed_size_list[float32;2]"}
	]}`))
	require.NoError(t, err)
	return schema
}

func testRecord(t *testing.T, schema *arrow.Schema, rowsJSON string) arrow.Record {
	t.Helper()

	rows, err := codec.ParseRows([]byte(rowsJSON))
	require.NoError(t, err)

	rec, err := codec.DecodeRows(rows, schema)
	require.NoError(t, err)
	return rec
}

func openTestTable(t *testing.T, uri string) (driver.Conn, driver.Table) {
	t.Helper()
	ctx := context.Background()

	conn, err := driver.Open(ctx, uri)
	require.NoError(t, err)

	require.NoError(t, conn.CreateTable(ctx, "items", testSchema(t)))

	tbl, err := conn.OpenTable(ctx, "items")
	require.NoError(t, err)

	rec := testRecord(t, testSchema(t), `[
		{"id":1,"category":"a","score":0.1,"vec":[0,0]},
		{"id":2,"category":"b","score":0.2,"vec":[1,0]},
		{"id":3,"category":"a","score":0.3,"vec":[0,3]},
		{"id":4,"category":"c","score":0.4,"vec":[5,5]}
	]`)
	defer rec.Release()

	n, err := tbl.Append(ctx, []arrow.Record{rec})
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	return conn, tbl
}

func queryRows(t *testing.T, tbl driver.Table, q driver.Query) []codec.Row {
	t.Helper()

	recs, err := tbl.Query(context.Background(), q)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	var rows []codec.Row
	for _, rec := range recs {
		rows = append(rows, codec.EncodeRows(rec)...)
		rec.Release()
	}
	return rows
}

func TestConnCatalog(t *testing.T) {
	ctx := context.Background()

	conn, err := driver.Open(ctx, "mem://catalog-test")
	require.NoError(t, err)

	names, err := conn.TableNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, conn.CreateTable(ctx, "t2", testSchema(t)))
	require.NoError(t, conn.CreateTable(ctx, "t1", testSchema(t)))

	names, err = conn.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, names)

	err = conn.CreateTable(ctx, "t1", testSchema(t))
	require.ErrorIs(t, err, driver.ErrTableExists)

	_, err = conn.OpenTable(ctx, "missing")
	require.ErrorIs(t, err, driver.ErrTableNotFound)

	require.NoError(t, conn.DropTable(ctx, "t2"))
	err = conn.DropTable(ctx, "t2")
	require.ErrorIs(t, err, driver.ErrTableNotFound)

	require.NoError(t, conn.Close(ctx))
	_, err = conn.TableNames(ctx)
	require.ErrorIs(t, err, driver.ErrClosed)
}

func TestCreateTableValidation(t *testing.T) {
	ctx := context.Background()

	conn, err := driver.Open(ctx, "mem://create-validation")
	require.NoError(t, err)

	err = conn.CreateTable(ctx, "", testSchema(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table name cannot be empty")

	err = conn.CreateTable(ctx, "empty", arrow.NewSchema(nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema has no fields")
}

func TestSharedDatabaseByURI(t *testing.T) {
	ctx := context.Background()

	first, err := driver.Open(ctx, "mem://shared-uri")
	require.NoError(t, err)
	require.NoError(t, first.CreateTable(ctx, "shared", testSchema(t)))

	second, err := driver.Open(ctx, "mem://shared-uri")
	require.NoError(t, err)
	names, err := second.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, names)

	other, err := driver.Open(ctx, "mem://other-uri")
	require.NoError(t, err)
	names, err = other.TableNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestAppendAndCount(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTestTable(t, "mem://append-count")

	count, err := tbl.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	version, err := tbl.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	rec := testRecord(t, testSchema(t), `{"id":5,"category":"d","score":0.5,"vec":[9,9]}`)
	defer rec.Release()

	n, err := tbl.Append(ctx, []arrow.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err = tbl.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	version, err = tbl.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)

	t.Run("EmptyAppendKeepsVersion", func(t *testing.T) {
		empty := testRecord(t, testSchema(t), `[]`)
		defer empty.Release()

		n, err := tbl.Append(ctx, []arrow.Record{empty})
		require.NoError(t, err)
		assert.Zero(t, n)

		version, err := tbl.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), version)
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		other := arrow.NewSchema([]arrow.Field{
			{Name: "id", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		}, nil)

		rows, err := codec.ParseRows([]byte(`{"id":1}`))
		require.NoError(t, err)
		rec, err := codec.DecodeRows(rows, other)
		require.NoError(t, err)
		defer rec.Release()

		_, err = tbl.Append(ctx, []arrow.Record{rec})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema mismatch")
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTestTable(t, "mem://delete")

	require.NoError(t, tbl.Delete(ctx, "category = 'a'"))

	count, err := tbl.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	version, err := tbl.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)

	t.Run("NoMatchKeepsVersion", func(t *testing.T) {
		require.NoError(t, tbl.Delete(ctx, "category = 'zzz'"))

		version, err := tbl.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), version)
	})

	t.Run("EmptyPredicate", func(t *testing.T) {
		err := tbl.Delete(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty predicate")
	})

	t.Run("UnknownColumn", func(t *testing.T) {
		err := tbl.Delete(ctx, "nope = 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "column nope does not exist")
	})

	t.Run("BadPredicate", func(t *testing.T) {
		require.Error(t, tbl.Delete(ctx, "category ="))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTestTable(t, "mem://update")

	err := tbl.Update(ctx, "id = 2", []driver.Assignment{
		{Column: "score", Literal: "9.5"},
		{Column: "category", Literal: "'x''y'"},
	})
	require.NoError(t, err)

	rows := queryRows(t, tbl, driver.Query{Filter: "id = 2", Limit: -1})
	require.Len(t, rows, 1)
	assert.Equal(t, "x'y", rows[0]["category"])

	count, err := tbl.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	t.Run("AllRows", func(t *testing.T) {
		require.NoError(t, tbl.Update(ctx, "", []driver.Assignment{
			{Column: "category", Literal: "'all'"},
		}))

		rows := queryRows(t, tbl, driver.Query{Filter: "category = 'all'", Limit: -1})
		assert.Len(t, rows, 4)
	})

	t.Run("NullAssignment", func(t *testing.T) {
		require.NoError(t, tbl.Update(ctx, "id = 3", []driver.Assignment{
			{Column: "category", Literal: "NULL"},
		}))

		rows := queryRows(t, tbl, driver.Query{Filter: "category IS NULL", Limit: -1})
		require.Len(t, rows, 1)
		assert.Equal(t, int64(3), rows[0]["id"])
	})

	t.Run("NullOnNonNullable", func(t *testing.T) {
		err := tbl.Update(ctx, "id = 1", []driver.Assignment{
			{Column: "id", Literal: "NULL"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not nullable")
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := tbl.Update(ctx, "id = 1", []driver.Assignment{
			{Column: "id", Literal: "'text'"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot assign")
	})

	t.Run("UnknownColumn", func(t *testing.T) {
		err := tbl.Update(ctx, "id = 1", []driver.Assignment{
			{Column: "nope", Literal: "1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "column nope does not exist")
	})

	t.Run("NoAssignments", func(t *testing.T) {
		err := tbl.Update(ctx, "id = 1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no update assignments")
	})
}

func TestQueryPlain(t *testing.T) {
	_, tbl := openTestTable(t, "mem://query-plain")

	t.Run("All", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{Limit: -1})
		assert.Len(t, rows, 4)
	})

	t.Run("Filter", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{Filter: "category = 'a' AND score >= 0.3", Limit: -1})
		require.Len(t, rows, 1)
		assert.Equal(t, int64(3), rows[0]["id"])
	})

	t.Run("Projection", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{Columns: []string{"id"}, Limit: -1})
		require.Len(t, rows, 4)
		assert.Contains(t, rows[0], "id")
		assert.NotContains(t, rows[0], "category")
	})

	t.Run("LimitOffset", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{Limit: 2, Offset: 1})
		require.Len(t, rows, 2)
		assert.Equal(t, int64(2), rows[0]["id"])
		assert.Equal(t, int64(3), rows[1]["id"])
	})

	t.Run("OffsetPastEnd", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{Limit: -1, Offset: 10})
		assert.Empty(t, rows)
	})

	t.Run("LimitZero", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{Limit: 0})
		assert.Empty(t, rows)
	})

	t.Run("UnknownProjection", func(t *testing.T) {
		_, err := tbl.Query(context.Background(), driver.Query{Columns: []string{"nope"}, Limit: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "column nope does not exist")
	})

	t.Run("EmptyResultKeepsSchema", func(t *testing.T) {
		recs, err := tbl.Query(context.Background(), driver.Query{Filter: "id > 100", Columns: []string{"id", "score"}, Limit: -1})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		defer recs[0].Release()

		assert.Equal(t, int64(0), recs[0].NumRows())
		assert.Equal(t, int64(2), recs[0].NumCols())
		assert.Equal(t, "id", recs[0].ColumnName(0))
	})
}

func TestVectorQuery(t *testing.T) {
	_, tbl := openTestTable(t, "mem://query-vector")

	t.Run("Nearest", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{
			Limit:  2,
			Vector: &driver.VectorQuery{Column: "vec", Vector: []float32{0, 0}, K: 2},
		})
		require.Len(t, rows, 2)
		assert.Equal(t, int64(1), rows[0]["id"])
		assert.Equal(t, int64(2), rows[1]["id"])

		assert.Equal(t, json.Number("0"), rows[0]["_distance"])
	})

	t.Run("FilterApplies", func(t *testing.T) {
		rows := queryRows(t, tbl, driver.Query{
			Filter: "category = 'a'",
			Limit:  10,
			Vector: &driver.VectorQuery{Column: "vec", Vector: []float32{0, 0}, K: 10},
		})
		require.Len(t, rows, 2)
		assert.Equal(t, int64(1), rows[0]["id"])
		assert.Equal(t, int64(3), rows[1]["id"])
	})

	t.Run("NullVectorSkipped", func(t *testing.T) {
		ctx := context.Background()
		rec := testRecord(t, testSchema(t), `{"id":9,"category":"n","score":0,"vec":null}`)
		defer rec.Release()

		_, err := tbl.Append(ctx, []arrow.Record{rec})
		require.NoError(t, err)

		rows := queryRows(t, tbl, driver.Query{
			Limit:  20,
			Vector: &driver.VectorQuery{Column: "vec", Vector: []float32{0, 0}, K: 20},
		})
		for _, row := range rows {
			assert.NotEqual(t, int64(9), row["id"])
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := tbl.Query(context.Background(), driver.Query{
			Limit:  1,
			Vector: &driver.VectorQuery{Column: "vec", Vector: []float32{0, 0, 0}, K: 1},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query vector has 3 elements")
	})

	t.Run("NotAVectorColumn", func(t *testing.T) {
		_, err := tbl.Query(context.Background(), driver.Query{
			Limit:  1,
			Vector: &driver.VectorQuery{Column: "score", Vector: []float32{0}, K: 1},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a vector column")
	})

	t.Run("BadK", func(t *testing.T) {
		_, err := tbl.Query(context.Background(), driver.Query{
			Limit:  1,
			Vector: &driver.VectorQuery{Column: "vec", Vector: []float32{0, 0}, K: 0},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "k must be positive")
	})
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTestTable(t, "mem://indexes")

	spec := driver.IndexSpec{
		Columns: []string{"vec"},
		Type:    driver.IndexTypeIvfPq,
		Params:  driver.DefaultIndexParams(driver.IndexTypeIvfPq),
	}
	require.NoError(t, tbl.CreateIndex(ctx, spec))

	t.Run("List", func(t *testing.T) {
		cfgs, err := tbl.ListIndexes(ctx)
		require.NoError(t, err)
		require.Len(t, cfgs, 1)
		assert.Equal(t, "vec_idx", cfgs[0].Name)
		assert.Equal(t, []string{"vec"}, cfgs[0].Columns)
		assert.Equal(t, driver.IndexTypeIvfPq, cfgs[0].Type)
	})

	t.Run("Stats", func(t *testing.T) {
		stats, ok, err := tbl.IndexStats(ctx, "vec_idx")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(4), stats.NumIndexedRows)
		assert.Equal(t, int64(0), stats.NumUnindexedRows)
		assert.Equal(t, "l2", stats.DistanceType)
		assert.Equal(t, 1, stats.NumIndices)
	})

	t.Run("StatsMissing", func(t *testing.T) {
		stats, ok, err := tbl.IndexStats(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, stats)
	})

	t.Run("UnindexedRowsGrow", func(t *testing.T) {
		rec := testRecord(t, testSchema(t), `{"id":6,"category":"f","score":0.6,"vec":[2,2]}`)
		defer rec.Release()

		_, err := tbl.Append(ctx, []arrow.Record{rec})
		require.NoError(t, err)

		stats, ok, err := tbl.IndexStats(ctx, "vec_idx")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(4), stats.NumIndexedRows)
		assert.Equal(t, int64(1), stats.NumUnindexedRows)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		err := tbl.CreateIndex(ctx, spec)
		require.ErrorIs(t, err, driver.ErrIndexExists)
	})

	t.Run("ScalarAndFTS", func(t *testing.T) {
		require.NoError(t, tbl.CreateIndex(ctx, driver.IndexSpec{
			Name:    "cat_btree",
			Columns: []string{"category"},
			Type:    driver.IndexTypeBTree,
		}))
		require.NoError(t, tbl.CreateIndex(ctx, driver.IndexSpec{
			Name:    "cat_fts",
			Columns: []string{"category"},
			Type:    driver.IndexTypeFTS,
		}))

		cfgs, err := tbl.ListIndexes(ctx)
		require.NoError(t, err)
		assert.Len(t, cfgs, 3)
	})

	t.Run("Validation", func(t *testing.T) {
		err := tbl.CreateIndex(ctx, driver.IndexSpec{Columns: nil, Type: driver.IndexTypeBTree})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "columns list cannot be empty")

		err = tbl.CreateIndex(ctx, driver.IndexSpec{Columns: []string{"nope"}, Type: driver.IndexTypeBTree})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "column nope does not exist")

		err = tbl.CreateIndex(ctx, driver.IndexSpec{Columns: []string{"score"}, Type: driver.IndexTypeIvfFlat})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a vector column")

		err = tbl.CreateIndex(ctx, driver.IndexSpec{Columns: []string{"score"}, Type: driver.IndexTypeFTS})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a string column")

		err = tbl.CreateIndex(ctx, driver.IndexSpec{Columns: []string{"vec"}, Type: driver.IndexTypeBTree})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a scalar column")
	})
}

func TestOptimize(t *testing.T) {
	ctx := context.Background()
	_, tbl := openTestTable(t, "mem://optimize")

	rec := testRecord(t, testSchema(t), `{"id":5,"category":"e","score":0.5,"vec":[1,1]}`)
	defer rec.Release()
	_, err := tbl.Append(ctx, []arrow.Record{rec})
	require.NoError(t, err)

	require.NoError(t, tbl.Delete(ctx, "id = 2"))

	stats, err := tbl.Optimize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Compaction.FragmentsRemoved)
	assert.Equal(t, int64(1), stats.Compaction.FragmentsAdded)
	assert.Equal(t, int64(2), stats.Compaction.FilesRemoved)
	assert.Equal(t, int64(1), stats.Compaction.FilesAdded)
	assert.Greater(t, stats.Prune.BytesRemoved, int64(0))
	assert.Equal(t, int64(3), stats.Prune.OldVersions)

	count, err := tbl.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	rows := queryRows(t, tbl, driver.Query{Limit: -1})
	assert.Len(t, rows, 4)

	t.Run("SecondRunIsNoop", func(t *testing.T) {
		stats, err := tbl.Optimize(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.Compaction.FragmentsRemoved)
		assert.Zero(t, stats.Compaction.FragmentsAdded)
		assert.Zero(t, stats.Prune.BytesRemoved)
		assert.Zero(t, stats.Prune.OldVersions)
	})
}

func TestHandleIsolation(t *testing.T) {
	ctx := context.Background()
	conn, tbl := openTestTable(t, "mem://handles")

	second, err := conn.OpenTable(ctx, "items")
	require.NoError(t, err)

	require.NoError(t, second.Close(ctx))
	_, err = second.CountRows(ctx)
	require.ErrorIs(t, err, driver.ErrClosed)

	count, err := tbl.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	require.NoError(t, conn.DropTable(ctx, "items"))
	_, err = tbl.CountRows(ctx)
	require.ErrorIs(t, err, driver.ErrTableNotFound)
}
