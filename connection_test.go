package cairngo

import (
	"os"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairndb/cairngo/codec"
	_ "github.com/cairndb/cairngo/memdriver"
)

const itemsSchema = `{
	"fields": [
		{"name": "id", "type": "int64", "nullable": false},
		{"name": "category", "type": "string", "nullable": true},
		{"name": "score", "type": "float64", "nullable": true},
		{"name": "vec", "type": "fixed_size_list[float32;2]", "nullable": true}
	]
}`

const itemsSeed = `[
	{"id": 1, "category": "a", "score": 1.5, "vec": [0, 0]},
	{"id": 2, "category": "a", "score": 2.5, "vec": [1, 0]},
	{"id": 3, "category": "b", "score": 3.5, "vec": [0, 3]},
	{"id": 4, "category": "b", "score": 4.5, "vec": [5, 5]}
]`

// newTestConn opens a connection against a database private to the test.
func newTestConn(t *testing.T, optFns ...Option) *Connection {
	t.Helper()

	conn, err := Connect("mem://"+t.Name(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// seedRecord decodes itemsSeed into one Arrow record.
func seedRecord(t *testing.T) (*arrow.Schema, arrow.Record) {
	t.Helper()

	schema, err := codec.ParseSchemaJSON(codec.Default, []byte(itemsSchema))
	require.NoError(t, err)

	rows, err := codec.ParseRows([]byte(itemsSeed))
	require.NoError(t, err)
	rec, err := codec.DecodeRows(rows, schema)
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return schema, rec
}

func TestConnect(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		uri := "mem://" + t.Name()
		conn, err := Connect(uri)
		require.NoError(t, err)

		assert.Equal(t, uri, conn.URI())

		names, err := conn.TableNames()
		require.NoError(t, err)
		assert.Empty(t, names)

		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close(), "close must be idempotent")

		_, err = conn.TableNames()
		require.ErrorIs(t, err, ErrClosed)
		assert.EqualError(t, err, "connection closed")
	})

	t.Run("EmptyURI", func(t *testing.T) {
		_, err := Connect("")

		var argErr *ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "connect", argErr.Op)
		assert.EqualError(t, err, "connect: URI cannot be empty")
	})

	t.Run("UnknownScheme", func(t *testing.T) {
		_, err := Connect("bogus://somewhere")
		require.Error(t, err)
		// Driver resolution errors reach the caller unwrapped.
		assert.ErrorContains(t, err, `unknown driver scheme "bogus"`)
	})

	t.Run("SharedDatabaseByURI", func(t *testing.T) {
		uri := "mem://" + t.Name()
		first, err := Connect(uri)
		require.NoError(t, err)
		defer first.Close()

		require.NoError(t, first.CreateTable("shared", []byte(itemsSchema)))

		second, err := Connect(uri)
		require.NoError(t, err)
		defer second.Close()

		names, err := second.TableNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"shared"}, names)
	})
}

func TestConnectWithOptions(t *testing.T) {
	t.Run("StorageOptionsReachEnv", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "before")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "before")
		t.Setenv("AWS_SESSION_TOKEN", "before")
		t.Setenv("AWS_REGION", "before")
		t.Setenv("AWS_DEFAULT_REGION", "before")
		t.Setenv("AWS_PROFILE", "before")

		opts := []byte(`{
			"s3_config": {
				"access_key_id": "AKIATEST",
				"secret_access_key": "sk-test",
				"region": "us-west-2"
			}
		}`)
		conn, err := ConnectWithOptions("mem://"+t.Name(), opts)
		require.NoError(t, err)
		defer conn.Close()

		assert.Equal(t, "AKIATEST", os.Getenv("AWS_ACCESS_KEY_ID"))
		assert.Equal(t, "sk-test", os.Getenv("AWS_SECRET_ACCESS_KEY"))
		assert.Equal(t, "us-west-2", os.Getenv("AWS_REGION"))
		assert.Equal(t, "us-west-2", os.Getenv("AWS_DEFAULT_REGION"))

		// Absent fields leave the environment alone.
		assert.Equal(t, "before", os.Getenv("AWS_SESSION_TOKEN"))
		assert.Equal(t, "before", os.Getenv("AWS_PROFILE"))
	})

	t.Run("InvalidStorageOptions", func(t *testing.T) {
		_, err := ConnectWithOptions("mem://"+t.Name(), []byte(`{"s3_config": [`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to parse storage options JSON")
	})

	t.Run("EmptyOptionsBehaveLikeConnect", func(t *testing.T) {
		conn, err := ConnectWithOptions("mem://"+t.Name(), nil)
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	})
}

func TestCreateTable(t *testing.T) {
	t.Run("CreatesEmptyTable", func(t *testing.T) {
		conn := newTestConn(t)

		require.NoError(t, conn.CreateTable("items", []byte(itemsSchema)))

		names, err := conn.TableNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"items"}, names)

		tbl, err := conn.OpenTable("items")
		require.NoError(t, err)
		defer tbl.Close()

		n, err := tbl.CountRows()
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		conn := newTestConn(t)

		require.NoError(t, conn.CreateTable("items", []byte(itemsSchema)))
		err := conn.CreateTable("items", []byte(itemsSchema))
		require.ErrorIs(t, err, ErrTableExists)
		assert.ErrorContains(t, err, "failed to create table")
	})

	t.Run("InvalidSchemaJSON", func(t *testing.T) {
		conn := newTestConn(t)

		err := conn.CreateTable("items", []byte(`{"fields": }`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to parse schema JSON")
	})

	t.Run("UnsupportedColumnType", func(t *testing.T) {
		conn := newTestConn(t)

		err := conn.CreateTable("items", []byte(`{"fields": [{"name": "x", "type": "decimal"}]}`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "unsupported data type")
	})
}

func TestCreateTableIPC(t *testing.T) {
	t.Run("ContainerRowsSeedTheTable", func(t *testing.T) {
		conn := newTestConn(t)
		schema, rec := seedRecord(t)

		payload, err := codec.EncodeRecords(schema, []arrow.Record{rec})
		require.NoError(t, err)

		require.NoError(t, conn.CreateTableIPC("items", payload))

		tbl, err := conn.OpenTable("items")
		require.NoError(t, err)
		defer tbl.Close()

		n, err := tbl.CountRows()
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("SchemaOnlyContainer", func(t *testing.T) {
		conn := newTestConn(t)
		schema, _ := seedRecord(t)

		payload, err := codec.EncodeRecords(schema, nil)
		require.NoError(t, err)

		require.NoError(t, conn.CreateTableIPC("items", payload))

		tbl, err := conn.OpenTable("items")
		require.NoError(t, err)
		defer tbl.Close()

		n, err := tbl.CountRows()
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("MalformedContainer", func(t *testing.T) {
		conn := newTestConn(t)

		err := conn.CreateTableIPC("items", []byte("not an arrow stream"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to read IPC schema")
	})
}

func TestOpenTable(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		conn := newTestConn(t)

		_, err := conn.OpenTable("ghost")
		require.ErrorIs(t, err, ErrTableNotFound)
		assert.ErrorContains(t, err, "failed to open table")
	})

	t.Run("NameSurvives", func(t *testing.T) {
		conn := newTestConn(t)
		require.NoError(t, conn.CreateTable("items", []byte(itemsSchema)))

		tbl, err := conn.OpenTable("items")
		require.NoError(t, err)
		defer tbl.Close()

		assert.Equal(t, "items", tbl.Name())
	})
}

func TestDropTable(t *testing.T) {
	conn := newTestConn(t)
	require.NoError(t, conn.CreateTable("items", []byte(itemsSchema)))

	require.NoError(t, conn.DropTable("items"))

	names, err := conn.TableNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	err = conn.DropTable("items")
	require.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorContains(t, err, "failed to drop table")
}
