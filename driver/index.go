package driver

import "fmt"

// IndexType enumerates the index families an engine can build.
type IndexType int

const (
	IndexTypeIvfPq IndexType = iota
	IndexTypeIvfFlat
	IndexTypeHnswPq
	IndexTypeHnswSq
	IndexTypeBTree
	IndexTypeBitmap
	IndexTypeLabelList
	IndexTypeFTS
)

// String returns the canonical wire name of the index type.
func (t IndexType) String() string {
	switch t {
	case IndexTypeIvfPq:
		return "IVF_PQ"
	case IndexTypeIvfFlat:
		return "IVF_FLAT"
	case IndexTypeHnswPq:
		return "HNSW_PQ"
	case IndexTypeHnswSq:
		return "HNSW_SQ"
	case IndexTypeBTree:
		return "BTREE"
	case IndexTypeBitmap:
		return "BITMAP"
	case IndexTypeLabelList:
		return "LABEL_LIST"
	case IndexTypeFTS:
		return "FTS"
	default:
		return fmt.Sprintf("IndexType(%d)", int(t))
	}
}

// IsVector reports whether the type is an approximate nearest-neighbour
// family.
func (t IndexType) IsVector() bool {
	switch t {
	case IndexTypeIvfPq, IndexTypeIvfFlat, IndexTypeHnswPq, IndexTypeHnswSq:
		return true
	default:
		return false
	}
}

// ParseIndexType maps a wire tag to an index type. The "vector" and
// "scalar" tags select the default family of their kind.
func ParseIndexType(tag string) (IndexType, error) {
	switch tag {
	case "vector", "ivf_pq":
		return IndexTypeIvfPq, nil
	case "ivf_flat":
		return IndexTypeIvfFlat, nil
	case "hnsw_pq":
		return IndexTypeHnswPq, nil
	case "hnsw_sq":
		return IndexTypeHnswSq, nil
	case "scalar", "btree":
		return IndexTypeBTree, nil
	case "bitmap":
		return IndexTypeBitmap, nil
	case "label_list":
		return IndexTypeLabelList, nil
	case "fts", "full_text":
		return IndexTypeFTS, nil
	default:
		return 0, fmt.Errorf("unsupported index type: %s", tag)
	}
}

// IndexParams carries per-family tuning. Zero values mean "engine
// default"; DefaultIndexParams fills in the usual starting points.
type IndexParams struct {
	// NumPartitions is the IVF partition count.
	NumPartitions int

	// NumSubVectors is the PQ sub-vector count.
	NumSubVectors int

	// M is the HNSW graph degree.
	M int

	// EfConstruction is the HNSW build-time beam width.
	EfConstruction int
}

// DefaultIndexParams returns the default tuning for an index family.
func DefaultIndexParams(t IndexType) IndexParams {
	switch t {
	case IndexTypeIvfPq:
		return IndexParams{NumPartitions: 256, NumSubVectors: 16}
	case IndexTypeIvfFlat:
		return IndexParams{NumPartitions: 256}
	case IndexTypeHnswPq:
		return IndexParams{NumPartitions: 256, NumSubVectors: 16, M: 20, EfConstruction: 300}
	case IndexTypeHnswSq:
		return IndexParams{NumPartitions: 256, M: 20, EfConstruction: 300}
	default:
		return IndexParams{}
	}
}

// IndexSpec describes an index to build.
type IndexSpec struct {
	// Name is the index name. Empty lets the engine derive one from the
	// column.
	Name string

	// Columns are the indexed columns.
	Columns []string

	// Type selects the index family.
	Type IndexType

	// Params tunes the build.
	Params IndexParams
}

// IndexConfig describes an existing index.
type IndexConfig struct {
	Name    string
	Columns []string
	Type    IndexType
}

// IndexStats reports the state of one index.
type IndexStats struct {
	NumIndexedRows   int64
	NumUnindexedRows int64
	Type             IndexType

	// DistanceType is set for vector indexes only.
	DistanceType string

	// NumIndices is the number of index shards backing the name.
	NumIndices int

	// Loss is the training loss for quantizing families, negative when
	// the engine does not report one.
	Loss float64
}
