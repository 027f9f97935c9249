package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// EncodeRows renders an Arrow record as wire rows.
//
// Encoding never fails: null slots become JSON null, NaN and the
// infinities (which JSON cannot carry) also become null, and a column
// type outside the wire dialect renders as a descriptive string rather
// than poisoning the whole batch.
func EncodeRows(rec arrow.Record) []Row {
	rows := make([]Row, rec.NumRows())
	for i := range rows {
		rows[i] = make(Row, rec.NumCols())
	}

	for c := 0; c < int(rec.NumCols()); c++ {
		name := rec.ColumnName(c)
		col := rec.Column(c)
		for i := 0; i < col.Len(); i++ {
			rows[i][name] = encodeValue(col, i)
		}
	}
	return rows
}

func encodeValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Float16:
		return floatNumber(float64(a.Value(i).Float32()), 32)
	case *array.Float32:
		return floatNumber(float64(a.Value(i)), 32)
	case *array.Float64:
		return floatNumber(a.Value(i), 64)
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return base64.StdEncoding.EncodeToString(a.Value(i))
	case *array.FixedSizeList:
		n := int(a.DataType().(*arrow.FixedSizeListType).Len())
		values := a.ListValues()
		base := (i + a.Data().Offset()) * n
		out := make([]any, n)
		for j := 0; j < n; j++ {
			out[j] = encodeValue(values, base+j)
		}
		return out
	case *array.List:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		out := make([]any, 0, end-start)
		for j := start; j < end; j++ {
			out = append(out, encodeValue(values, int(j)))
		}
		return out
	default:
		return fmt.Sprintf("unsupported type: %s", arr.DataType())
	}
}

// floatNumber formats with the shortest representation that round-trips
// at the given width, so a float32 column prints 0.1 and not the float64
// expansion of its bits.
func floatNumber(x float64, bits int) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return json.Number(strconv.FormatFloat(x, 'g', -1, bits))
}
