package memdriver

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cairndb/cairngo/driver"
)

// indexEntry is bookkeeping only. The engine scans exactly either way;
// entries exist so the catalog surface behaves like a real engine's.
type indexEntry struct {
	cfg          driver.IndexConfig
	params       driver.IndexParams
	distance     string
	rowsAtCreate int64
}

func (t *table) createIndex(spec driver.IndexSpec) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(spec.Columns) == 0 {
		return fmt.Errorf("columns list cannot be empty")
	}
	for _, c := range spec.Columns {
		if _, ok := t.fieldIdx[c]; !ok {
			return fmt.Errorf("column %s does not exist", c)
		}
	}

	if spec.Type.IsVector() || spec.Type == driver.IndexTypeFTS {
		if len(spec.Columns) != 1 {
			return fmt.Errorf("index type %s supports exactly one column", spec.Type)
		}
	}

	for _, c := range spec.Columns {
		f := t.schema.Field(t.fieldIdx[c])
		switch {
		case spec.Type.IsVector():
			fsl, ok := f.Type.(*arrow.FixedSizeListType)
			if !ok || !isNumericType(fsl.Elem()) {
				return fmt.Errorf("column %s is not a vector column", c)
			}
		case spec.Type == driver.IndexTypeFTS:
			if f.Type.ID() != arrow.STRING {
				return fmt.Errorf("column %s is not a string column", c)
			}
		case spec.Type == driver.IndexTypeLabelList:
			if f.Type.ID() != arrow.LIST && f.Type.ID() != arrow.FIXED_SIZE_LIST {
				return fmt.Errorf("column %s is not a list column", c)
			}
		default:
			if f.Type.ID() == arrow.LIST || f.Type.ID() == arrow.FIXED_SIZE_LIST {
				return fmt.Errorf("column %s is not a scalar column", c)
			}
		}
	}

	name := spec.Name
	if name == "" {
		name = spec.Columns[0] + "_idx"
	}
	for _, e := range t.indexes {
		if e.cfg.Name == name {
			return fmt.Errorf("index %q: %w", name, driver.ErrIndexExists)
		}
	}

	distance := ""
	if spec.Type.IsVector() {
		distance = "l2"
	}

	var live int64
	for _, f := range t.frags {
		live += f.live()
	}

	t.indexes = append(t.indexes, indexEntry{
		cfg: driver.IndexConfig{
			Name:    name,
			Columns: append([]string(nil), spec.Columns...),
			Type:    spec.Type,
		},
		params:       spec.Params,
		distance:     distance,
		rowsAtCreate: live,
	})
	t.version++
	t.staleVersions++
	return nil
}

func (t *table) listIndexes() []driver.IndexConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cfgs := make([]driver.IndexConfig, 0, len(t.indexes))
	for _, e := range t.indexes {
		cfgs = append(cfgs, e.cfg)
	}
	return cfgs
}

func (t *table) indexStats(name string) (*driver.IndexStats, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.indexes {
		if e.cfg.Name != name {
			continue
		}

		var live int64
		for _, f := range t.frags {
			live += f.live()
		}
		indexed := e.rowsAtCreate
		if indexed > live {
			indexed = live
		}

		return &driver.IndexStats{
			NumIndexedRows:   indexed,
			NumUnindexedRows: live - indexed,
			Type:             e.cfg.Type,
			DistanceType:     e.distance,
			NumIndices:       1,
			Loss:             -1,
		}, true, nil
	}
	return nil, false, nil
}
