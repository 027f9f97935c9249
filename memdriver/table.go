package memdriver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cairndb/cairngo/driver"
)

// fragment is an immutable batch of rows plus the tombstones masking it.
type fragment struct {
	rec   arrow.Record
	tombs *roaring.Bitmap
}

func (f *fragment) live() int64 {
	return f.rec.NumRows() - int64(f.tombs.GetCardinality())
}

// rowRef addresses one live row inside a fragment.
type rowRef struct {
	f *fragment
	i int
}

type table struct {
	name     string
	fieldIdx map[string]int

	mu      sync.RWMutex
	schema  *arrow.Schema
	frags   []*fragment
	version uint64
	indexes []indexEntry

	droppedBytes  int64
	staleVersions int64

	dropped atomic.Bool
}

func newTable(name string, schema *arrow.Schema) *table {
	idx := make(map[string]int, schema.NumFields())
	for i, f := range schema.Fields() {
		idx[f.Name] = i
	}
	return &table{name: name, fieldIdx: idx, schema: schema, version: 1}
}

func (t *table) release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropped.Store(true)
	for _, f := range t.frags {
		f.rec.Release()
	}
	t.frags = nil
}

func (t *table) checkSchema(s *arrow.Schema) error {
	if s.NumFields() != t.schema.NumFields() {
		return fmt.Errorf("schema mismatch: got %d fields, want %d", s.NumFields(), t.schema.NumFields())
	}
	for i := 0; i < t.schema.NumFields(); i++ {
		want := t.schema.Field(i)
		got := s.Field(i)
		if got.Name != want.Name || !arrow.TypeEqual(got.Type, want.Type) {
			return fmt.Errorf("schema mismatch: got field %s %s, want %s %s", got.Name, got.Type, want.Name, want.Type)
		}
	}
	return nil
}

func (t *table) getter(f *fragment, i int) func(string) (any, error) {
	return func(name string) (any, error) {
		return colValue(f.rec.Column(t.fieldIdx[name]), i)
	}
}

// bindColumns validates predicate column references upfront so an eval
// short-circuit cannot hide a bad name.
func (t *table) bindColumns(cols []string) error {
	for _, c := range cols {
		if _, ok := t.fieldIdx[c]; !ok {
			return fmt.Errorf("column %s does not exist", c)
		}
	}
	return nil
}

func (t *table) liveRefs() []rowRef {
	var refs []rowRef
	for _, f := range t.frags {
		for i := 0; i < int(f.rec.NumRows()); i++ {
			if f.tombs.Contains(uint32(i)) {
				continue
			}
			refs = append(refs, rowRef{f: f, i: i})
		}
	}
	return refs
}

func (t *table) fragmentRowBytes(f *fragment) int64 {
	rows := f.rec.NumRows()
	if rows == 0 {
		return 0
	}
	return recordBytes(f.rec) / rows
}

func (t *table) appendRecs(recs []arrow.Record) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range recs {
		if err := t.checkSchema(rec.Schema()); err != nil {
			return 0, err
		}
	}

	var added int64
	for _, rec := range recs {
		if rec.NumRows() == 0 {
			continue
		}
		rec.Retain()
		t.frags = append(t.frags, &fragment{rec: rec, tombs: roaring.New()})
		added += rec.NumRows()
	}
	if added > 0 {
		t.version++
		t.staleVersions++
	}
	return added, nil
}

func (t *table) deleteRows(predicate string) error {
	pred, err := parsePredicate(predicate)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.bindColumns(pred.columns()); err != nil {
		return err
	}

	matched := false
	for _, f := range t.frags {
		for i := 0; i < int(f.rec.NumRows()); i++ {
			if f.tombs.Contains(uint32(i)) {
				continue
			}
			ok, err := pred.eval(t.getter(f, i))
			if err != nil {
				return err
			}
			if ok {
				f.tombs.Add(uint32(i))
				t.droppedBytes += t.fragmentRowBytes(f)
				matched = true
			}
		}
	}
	if matched {
		t.version++
		t.staleVersions++
	}
	return nil
}

func (t *table) updateRows(predicate string, assigns []driver.Assignment) error {
	if len(assigns) == 0 {
		return fmt.Errorf("no update assignments")
	}

	var pred *predicate
	if predicate != "" {
		var err error
		pred, err = parsePredicate(predicate)
		if err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if pred != nil {
		if err := t.bindColumns(pred.columns()); err != nil {
			return err
		}
	}

	overrides := make(map[int]any, len(assigns))
	for _, a := range assigns {
		idx, ok := t.fieldIdx[a.Column]
		if !ok {
			return fmt.Errorf("column %s does not exist", a.Column)
		}
		v, err := parseLiteral(a.Literal, t.schema.Field(idx))
		if err != nil {
			return err
		}
		overrides[idx] = v
	}

	var matches []rowRef
	for _, f := range t.frags {
		for i := 0; i < int(f.rec.NumRows()); i++ {
			if f.tombs.Contains(uint32(i)) {
				continue
			}
			if pred != nil {
				ok, err := pred.eval(t.getter(f, i))
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			matches = append(matches, rowRef{f: f, i: i})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	rewritten, err := rebuildRows(t.schema, matches, overrides)
	if err != nil {
		return err
	}

	for _, ref := range matches {
		ref.f.tombs.Add(uint32(ref.i))
		t.droppedBytes += t.fragmentRowBytes(ref.f)
	}
	t.frags = append(t.frags, &fragment{rec: rewritten, tombs: roaring.New()})
	t.version++
	t.staleVersions++
	return nil
}

func (t *table) countRows() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var n int64
	for _, f := range t.frags {
		n += f.live()
	}
	return n
}

func (t *table) versionNum() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

func (t *table) currentSchema() *arrow.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema
}

func (t *table) optimize() (driver.OptimizeStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stats driver.OptimizeStats

	needCompact := len(t.frags) > 1 || (len(t.frags) == 1 && !t.frags[0].tombs.IsEmpty())
	if needCompact {
		refs := t.liveRefs()

		var merged arrow.Record
		if len(refs) > 0 {
			var err error
			merged, err = rebuildRows(t.schema, refs, nil)
			if err != nil {
				return stats, err
			}
		}

		removed := int64(len(t.frags))
		for _, f := range t.frags {
			f.rec.Release()
		}
		t.frags = nil

		stats.Compaction.FragmentsRemoved = removed
		stats.Compaction.FilesRemoved = removed
		if merged != nil {
			t.frags = []*fragment{{rec: merged, tombs: roaring.New()}}
			stats.Compaction.FragmentsAdded = 1
			stats.Compaction.FilesAdded = 1
		}
		t.version++
	}

	stats.Prune.BytesRemoved = t.droppedBytes
	stats.Prune.OldVersions = t.staleVersions
	t.droppedBytes = 0
	t.staleVersions = 0
	return stats, nil
}

// openTable is one handle onto a shared table. Closing a handle does not
// affect other handles.
type openTable struct {
	t      *table
	closed atomic.Bool
}

var _ driver.Table = (*openTable)(nil)

func (o *openTable) check() error {
	if o.closed.Load() {
		return fmt.Errorf("table %w", driver.ErrClosed)
	}
	if o.t.dropped.Load() {
		return fmt.Errorf("table %q: %w", o.t.name, driver.ErrTableNotFound)
	}
	return nil
}

func (o *openTable) Schema(_ context.Context) (*arrow.Schema, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	return o.t.currentSchema(), nil
}

func (o *openTable) Append(_ context.Context, recs []arrow.Record) (int64, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	return o.t.appendRecs(recs)
}

func (o *openTable) Delete(_ context.Context, predicate string) error {
	if err := o.check(); err != nil {
		return err
	}
	return o.t.deleteRows(predicate)
}

func (o *openTable) Update(_ context.Context, predicate string, assigns []driver.Assignment) error {
	if err := o.check(); err != nil {
		return err
	}
	return o.t.updateRows(predicate, assigns)
}

func (o *openTable) Query(_ context.Context, q driver.Query) ([]arrow.Record, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	return o.t.query(q)
}

func (o *openTable) CreateIndex(_ context.Context, spec driver.IndexSpec) error {
	if err := o.check(); err != nil {
		return err
	}
	return o.t.createIndex(spec)
}

func (o *openTable) ListIndexes(_ context.Context) ([]driver.IndexConfig, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	return o.t.listIndexes(), nil
}

func (o *openTable) IndexStats(_ context.Context, name string) (*driver.IndexStats, bool, error) {
	if err := o.check(); err != nil {
		return nil, false, err
	}
	return o.t.indexStats(name)
}

func (o *openTable) CountRows(_ context.Context) (int64, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	return o.t.countRows(), nil
}

func (o *openTable) Version(_ context.Context) (uint64, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	return o.t.versionNum(), nil
}

func (o *openTable) Optimize(_ context.Context) (driver.OptimizeStats, error) {
	if err := o.check(); err != nil {
		return driver.OptimizeStats{}, err
	}
	return o.t.optimize()
}

func (o *openTable) Close(_ context.Context) error {
	o.closed.Store(true)
	return nil
}
