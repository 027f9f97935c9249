package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Row is one wire row: column name to JSON value. Numbers are json.Number
// so integer narrowing can check the original digits.
type Row map[string]any

// ParseRows parses a row payload. A JSON array yields its elements and a
// single JSON object is treated as a batch of one.
//
// Both helpers here decode with json.Number enabled so integer digits
// survive until the typed column decides how to narrow them.
func ParseRows(data []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON document")
	}

	switch doc := v.(type) {
	case []any:
		rows := make([]Row, 0, len(doc))
		for _, el := range doc {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("row must be a JSON object")
			}
			rows = append(rows, Row(obj))
		}
		return rows, nil
	case map[string]any:
		return []Row{Row(doc)}, nil
	default:
		return nil, fmt.Errorf("rows must be a JSON object or an array of objects")
	}
}

// ParseObject parses a single JSON object with number fidelity preserved.
func ParseObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return obj, nil
}

// DecodeRows builds an Arrow record from wire rows against the schema.
//
// Decoding is strict: a JSON kind that does not match the column type, an
// integer outside the declared width, a vector with the wrong element
// count, or a missing/null value on a non-nullable field all fail the
// whole batch. Row keys that are not schema fields are ignored. The caller
// owns the returned record and must Release it.
func DecodeRows(rows []Row, schema *arrow.Schema) (arrow.Record, error) {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()

	for i, f := range schema.Fields() {
		fb := bld.Field(i)
		for _, row := range rows {
			v, present := row[f.Name]
			if !present || v == nil {
				if !f.Nullable {
					return nil, &MissingFieldError{Field: f.Name}
				}
				fb.AppendNull()
				continue
			}
			if err := appendValue(fb, f, v); err != nil {
				return nil, err
			}
		}
	}

	return bld.NewRecord(), nil
}

func appendValue(fb array.Builder, f arrow.Field, v any) error {
	switch f.Type.ID() {
	case arrow.INT8:
		n, err := intValue(f.Name, "int8", v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		fb.(*array.Int8Builder).Append(int8(n))
	case arrow.INT16:
		n, err := intValue(f.Name, "int16", v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		fb.(*array.Int16Builder).Append(int16(n))
	case arrow.INT32:
		n, err := intValue(f.Name, "int32", v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		fb.(*array.Int32Builder).Append(int32(n))
	case arrow.INT64:
		n, err := intValue(f.Name, "int64", v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		fb.(*array.Int64Builder).Append(n)
	case arrow.FLOAT16:
		x, err := floatValue(f.Name, v)
		if err != nil {
			return err
		}
		fb.(*array.Float16Builder).Append(float16.New(float32(x)))
	case arrow.FLOAT32:
		x, err := floatValue(f.Name, v)
		if err != nil {
			return err
		}
		fb.(*array.Float32Builder).Append(float32(x))
	case arrow.FLOAT64:
		x, err := floatValue(f.Name, v)
		if err != nil {
			return err
		}
		fb.(*array.Float64Builder).Append(x)
	case arrow.BOOL:
		b, ok := v.(bool)
		if !ok {
			return &TypeMismatchError{Field: f.Name, Want: "boolean"}
		}
		fb.(*array.BooleanBuilder).Append(b)
	case arrow.STRING:
		s, ok := v.(string)
		if !ok {
			return &TypeMismatchError{Field: f.Name, Want: "string"}
		}
		fb.(*array.StringBuilder).Append(s)
	case arrow.BINARY:
		s, ok := v.(string)
		if !ok {
			return &TypeMismatchError{Field: f.Name, Want: "base64 string"}
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid base64 in field %s: %w", f.Name, err)
		}
		fb.(*array.BinaryBuilder).Append(raw)
	case arrow.FIXED_SIZE_LIST:
		return appendVector(fb.(*array.FixedSizeListBuilder), f, v)
	default:
		return fmt.Errorf("unsupported data type: %s", f.Type)
	}
	return nil
}

func appendVector(lb *array.FixedSizeListBuilder, f arrow.Field, v any) error {
	t := f.Type.(*arrow.FixedSizeListType)

	elems, ok := v.([]any)
	if !ok {
		return &TypeMismatchError{Field: f.Name, Want: "array"}
	}
	if len(elems) != int(t.Len()) {
		return &ArityError{Field: f.Name, Want: int(t.Len()), Got: len(elems)}
	}

	lb.Append(true)
	vb := lb.ValueBuilder()

	for _, el := range elems {
		num, ok := el.(json.Number)
		if !ok {
			return fmt.Errorf("vector field %s elements must be numeric", f.Name)
		}
		if err := appendVectorElem(vb, f.Name, t.Elem(), num); err != nil {
			return err
		}
	}
	return nil
}

func appendVectorElem(vb array.Builder, name string, elem arrow.DataType, num json.Number) error {
	switch elem.ID() {
	case arrow.INT8:
		n, err := intFromNumber(name, "int8", num, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		vb.(*array.Int8Builder).Append(int8(n))
	case arrow.INT16:
		n, err := intFromNumber(name, "int16", num, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		vb.(*array.Int16Builder).Append(int16(n))
	case arrow.INT32:
		n, err := intFromNumber(name, "int32", num, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		vb.(*array.Int32Builder).Append(int32(n))
	case arrow.INT64:
		n, err := intFromNumber(name, "int64", num, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		vb.(*array.Int64Builder).Append(n)
	case arrow.FLOAT16:
		x, err := floatFromNumber(name, num)
		if err != nil {
			return err
		}
		vb.(*array.Float16Builder).Append(float16.New(float32(x)))
	case arrow.FLOAT32:
		x, err := floatFromNumber(name, num)
		if err != nil {
			return err
		}
		vb.(*array.Float32Builder).Append(float32(x))
	case arrow.FLOAT64:
		x, err := floatFromNumber(name, num)
		if err != nil {
			return err
		}
		vb.(*array.Float64Builder).Append(x)
	default:
		return fmt.Errorf("unsupported vector element type %s in field %s", elem, name)
	}
	return nil
}

func intValue(name, typ string, v any, min, max int64) (int64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, &TypeMismatchError{Field: name, Want: "number"}
	}
	return intFromNumber(name, typ, num, min, max)
}

func intFromNumber(name, typ string, num json.Number, min, max int64) (int64, error) {
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("invalid number format in field %s: %s", name, num)
	}
	if n < min || n > max {
		return 0, &RangeError{Field: name, Type: typ, Value: num.String()}
	}
	return n, nil
}

func floatValue(name string, v any) (float64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, &TypeMismatchError{Field: name, Want: "number"}
	}
	return floatFromNumber(name, num)
}

func floatFromNumber(name string, num json.Number) (float64, error) {
	x, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("invalid number format in field %s: %s", name, num)
	}
	return x, nil
}
