package memdriver

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cairndb/cairngo/driver"
	"github.com/cairndb/cairngo/internal/vmath"
)

// distanceColumn is appended to vector search results.
const distanceColumn = "_distance"

func (t *table) query(q driver.Query) ([]arrow.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	refs := t.liveRefs()

	if q.Filter != "" {
		pred, err := parsePredicate(q.Filter)
		if err != nil {
			return nil, err
		}
		if err := t.bindColumns(pred.columns()); err != nil {
			return nil, err
		}
		kept := refs[:0]
		for _, ref := range refs {
			ok, err := pred.eval(t.getter(ref.f, ref.i))
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, ref)
			}
		}
		refs = kept
	}

	outFields, srcIdx, err := t.projection(q.Columns)
	if err != nil {
		return nil, err
	}

	if q.Vector != nil {
		return t.vectorQuery(q, refs, outFields, srcIdx)
	}

	if q.Offset > 0 {
		if q.Offset >= len(refs) {
			refs = refs[:0]
		} else {
			refs = refs[q.Offset:]
		}
	}
	if q.Limit >= 0 && len(refs) > q.Limit {
		refs = refs[:q.Limit]
	}

	rec, err := t.buildResult(outFields, srcIdx, refs, nil)
	if err != nil {
		return nil, err
	}
	return []arrow.Record{rec}, nil
}

func (t *table) projection(cols []string) ([]arrow.Field, []int, error) {
	if len(cols) == 0 {
		fields := t.schema.Fields()
		idx := make([]int, len(fields))
		for j := range idx {
			idx[j] = j
		}
		return fields, idx, nil
	}

	fields := make([]arrow.Field, 0, len(cols))
	idx := make([]int, 0, len(cols))
	for _, c := range cols {
		j, ok := t.fieldIdx[c]
		if !ok {
			return nil, nil, fmt.Errorf("column %s does not exist", c)
		}
		fields = append(fields, t.schema.Field(j))
		idx = append(idx, j)
	}
	return fields, idx, nil
}

func (t *table) vectorQuery(q driver.Query, refs []rowRef, outFields []arrow.Field, srcIdx []int) ([]arrow.Record, error) {
	vq := q.Vector

	j, ok := t.fieldIdx[vq.Column]
	if !ok {
		return nil, fmt.Errorf("column %s does not exist", vq.Column)
	}
	fsl, ok := t.schema.Field(j).Type.(*arrow.FixedSizeListType)
	if !ok || !isNumericType(fsl.Elem()) {
		return nil, fmt.Errorf("column %s is not a vector column", vq.Column)
	}
	if int(fsl.Len()) != len(vq.Vector) {
		return nil, fmt.Errorf("query vector has %d elements but column %s expects %d", len(vq.Vector), vq.Column, fsl.Len())
	}
	if vq.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	type scored struct {
		ref  rowRef
		dist float32
	}

	// Brute-force scan. Index entries only steer real engines; here every
	// search is exact.
	scoredRefs := make([]scored, 0, len(refs))
	buf := make([]float32, int(fsl.Len()))
	for _, ref := range refs {
		vec, isNull, err := vectorAt(ref.f.rec.Column(j), ref.i, buf)
		if err != nil {
			return nil, err
		}
		if isNull {
			continue
		}
		scoredRefs = append(scoredRefs, scored{ref: ref, dist: vmath.SquaredL2(vq.Vector, vec)})
	}

	sort.SliceStable(scoredRefs, func(a, b int) bool {
		return scoredRefs[a].dist < scoredRefs[b].dist
	})

	limit := q.Limit
	if limit < 0 {
		limit = vq.K
	}
	if len(scoredRefs) > limit {
		scoredRefs = scoredRefs[:limit]
	}

	outRefs := make([]rowRef, len(scoredRefs))
	dists := make([]float32, len(scoredRefs))
	for i, s := range scoredRefs {
		outRefs[i] = s.ref
		dists[i] = s.dist
	}

	rec, err := t.buildResult(outFields, srcIdx, outRefs, dists)
	if err != nil {
		return nil, err
	}
	return []arrow.Record{rec}, nil
}

func (t *table) buildResult(outFields []arrow.Field, srcIdx []int, refs []rowRef, dists []float32) (arrow.Record, error) {
	fields := outFields
	if dists != nil {
		fields = append(append([]arrow.Field{}, outFields...), arrow.Field{
			Name:     distanceColumn,
			Type:     arrow.PrimitiveTypes.Float32,
			Nullable: true,
		})
	}
	schema := arrow.NewSchema(fields, nil)

	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()

	for j, f := range outFields {
		b := bld.Field(j)
		src := srcIdx[j]
		for _, ref := range refs {
			v, err := colValue(ref.f.rec.Column(src), ref.i)
			if err != nil {
				return nil, err
			}
			if err := appendCell(b, f, v); err != nil {
				return nil, err
			}
		}
	}
	if dists != nil {
		db := bld.Field(len(outFields)).(*array.Float32Builder)
		for _, d := range dists {
			db.Append(d)
		}
	}
	return bld.NewRecord(), nil
}

// vectorAt reads a vector cell into buf as float32, converting from the
// declared element type. Null elements read as zero.
func vectorAt(arr arrow.Array, i int, buf []float32) (vec []float32, isNull bool, err error) {
	a, ok := arr.(*array.FixedSizeList)
	if !ok {
		return nil, false, fmt.Errorf("not a vector column")
	}
	if a.IsNull(i) {
		return nil, true, nil
	}

	n := len(buf)
	values := a.ListValues()
	base := (i + a.Data().Offset()) * n

	switch vs := values.(type) {
	case *array.Float32:
		for j := range buf {
			buf[j] = vs.Value(base + j)
		}
	case *array.Float64:
		for j := range buf {
			buf[j] = float32(vs.Value(base + j))
		}
	case *array.Float16:
		for j := range buf {
			buf[j] = vs.Value(base + j).Float32()
		}
	case *array.Int8:
		for j := range buf {
			buf[j] = float32(vs.Value(base + j))
		}
	case *array.Int16:
		for j := range buf {
			buf[j] = float32(vs.Value(base + j))
		}
	case *array.Int32:
		for j := range buf {
			buf[j] = float32(vs.Value(base + j))
		}
	case *array.Int64:
		for j := range buf {
			buf[j] = float32(vs.Value(base + j))
		}
	default:
		return nil, false, fmt.Errorf("unsupported vector element type %s", values.DataType())
	}
	return buf, false, nil
}

func isNumericType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return true
	default:
		return false
	}
}
