package memdriver

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// colValue extracts one cell in canonical form: int64 for integers,
// float64 for floats, bool, string, []byte, []any for lists, nil for
// null.
func colValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Float16:
		return float64(a.Value(i).Float32()), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...), nil
	case *array.FixedSizeList:
		n := int(a.DataType().(*arrow.FixedSizeListType).Len())
		values := a.ListValues()
		base := (i + a.Data().Offset()) * n
		out := make([]any, n)
		for j := 0; j < n; j++ {
			v, err := colValue(values, base+j)
			if err != nil {
				return nil, err
			}
			out[j] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", arr.DataType())
	}
}

// appendCell writes a canonical value into a builder for the field type.
func appendCell(b array.Builder, f arrow.Field, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	mismatch := func() error {
		return fmt.Errorf("cannot assign %v to column %s (%s)", v, f.Name, f.Type)
	}

	switch f.Type.ID() {
	case arrow.INT8:
		n, ok := v.(int64)
		if !ok || n < math.MinInt8 || n > math.MaxInt8 {
			return mismatch()
		}
		b.(*array.Int8Builder).Append(int8(n))
	case arrow.INT16:
		n, ok := v.(int64)
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return mismatch()
		}
		b.(*array.Int16Builder).Append(int16(n))
	case arrow.INT32:
		n, ok := v.(int64)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return mismatch()
		}
		b.(*array.Int32Builder).Append(int32(n))
	case arrow.INT64:
		n, ok := v.(int64)
		if !ok {
			return mismatch()
		}
		b.(*array.Int64Builder).Append(n)
	case arrow.FLOAT16:
		x, ok := numericValue(v)
		if !ok {
			return mismatch()
		}
		b.(*array.Float16Builder).Append(float16.New(float32(x)))
	case arrow.FLOAT32:
		x, ok := numericValue(v)
		if !ok {
			return mismatch()
		}
		b.(*array.Float32Builder).Append(float32(x))
	case arrow.FLOAT64:
		x, ok := numericValue(v)
		if !ok {
			return mismatch()
		}
		b.(*array.Float64Builder).Append(x)
	case arrow.BOOL:
		x, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		b.(*array.BooleanBuilder).Append(x)
	case arrow.STRING:
		x, ok := v.(string)
		if !ok {
			return mismatch()
		}
		b.(*array.StringBuilder).Append(x)
	case arrow.BINARY:
		x, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		b.(*array.BinaryBuilder).Append(x)
	case arrow.FIXED_SIZE_LIST:
		t := f.Type.(*arrow.FixedSizeListType)
		elems, ok := v.([]any)
		if !ok || len(elems) != int(t.Len()) {
			return mismatch()
		}
		lb := b.(*array.FixedSizeListBuilder)
		lb.Append(true)
		elemField := arrow.Field{Name: "item", Type: t.Elem(), Nullable: true}
		for _, el := range elems {
			if err := appendCell(lb.ValueBuilder(), elemField, el); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported column type %s", f.Type)
	}
	return nil
}

func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// rebuildRows copies the referenced rows into a fresh record, replacing
// columns listed in overrides with a fixed value.
func rebuildRows(schema *arrow.Schema, refs []rowRef, overrides map[int]any) (arrow.Record, error) {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()

	for j, f := range schema.Fields() {
		b := bld.Field(j)
		ov, hasOv := overrides[j]
		for _, ref := range refs {
			v := ov
			if !hasOv {
				var err error
				v, err = colValue(ref.f.rec.Column(j), ref.i)
				if err != nil {
					return nil, err
				}
			}
			if err := appendCell(b, f, v); err != nil {
				return nil, err
			}
		}
	}
	return bld.NewRecord(), nil
}

// parseLiteral converts a SQL literal into a canonical value for the
// column type.
func parseLiteral(lit string, f arrow.Field) (any, error) {
	lit = strings.TrimSpace(lit)

	if strings.EqualFold(lit, "NULL") {
		if !f.Nullable {
			return nil, fmt.Errorf("column %s is not nullable", f.Name)
		}
		return nil, nil
	}

	if strings.HasPrefix(lit, "'") {
		if len(lit) < 2 || !strings.HasSuffix(lit, "'") {
			return nil, fmt.Errorf("unterminated string literal %s", lit)
		}
		s := strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
		switch f.Type.ID() {
		case arrow.STRING:
			return s, nil
		case arrow.BINARY:
			return []byte(s), nil
		default:
			return nil, fmt.Errorf("cannot assign %s to column %s (%s)", lit, f.Name, f.Type)
		}
	}

	if strings.EqualFold(lit, "true") || strings.EqualFold(lit, "false") {
		if f.Type.ID() != arrow.BOOL {
			return nil, fmt.Errorf("cannot assign %s to column %s (%s)", lit, f.Name, f.Type)
		}
		return strings.EqualFold(lit, "true"), nil
	}

	switch f.Type.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot assign %s to column %s (%s)", lit, f.Name, f.Type)
		}
		return n, nil
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		x, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot assign %s to column %s (%s)", lit, f.Name, f.Type)
		}
		return x, nil
	default:
		return nil, fmt.Errorf("cannot assign %s to column %s (%s)", lit, f.Name, f.Type)
	}
}

// recordBytes estimates the in-memory footprint of a record by summing
// its buffer lengths.
func recordBytes(rec arrow.Record) int64 {
	var total int64
	for _, col := range rec.Columns() {
		total += dataBytes(col.Data())
	}
	return total
}

func dataBytes(data arrow.ArrayData) int64 {
	var total int64
	for _, buf := range data.Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	for _, child := range data.Children() {
		total += dataBytes(child)
	}
	return total
}
