package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Compression selects the body compression of an IPC container.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// ContainerOption configures IPC container encoding.
type ContainerOption func(*containerOptions)

type containerOptions struct {
	compression Compression
}

// WithCompression compresses record bodies with the given codec. The
// container self-describes, so readers need no matching option.
func WithCompression(c Compression) ContainerOption {
	return func(o *containerOptions) {
		o.compression = c
	}
}

// EncodeRecords writes a schema and its record batches as an Arrow IPC
// file container. A nil or empty batch slice produces a schema-only
// container.
func EncodeRecords(schema *arrow.Schema, recs []arrow.Record, optFns ...ContainerOption) ([]byte, error) {
	opts := containerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	ipcOpts := []ipc.Option{
		ipc.WithSchema(schema),
		ipc.WithAllocator(memory.DefaultAllocator),
	}
	switch opts.compression {
	case CompressionZstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	case CompressionLZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	}

	buf := &seekBuffer{}
	w, err := ipc.NewFileWriter(buf, ipcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create IPC writer: %w", err)
	}

	for _, rec := range recs {
		if !rec.Schema().Equal(schema) {
			w.Close()
			return nil, fmt.Errorf("record schema does not match container schema")
		}
		if err := w.Write(rec); err != nil {
			w.Close()
			return nil, fmt.Errorf("write IPC record: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close IPC writer: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeSchema writes a schema-only IPC file container.
func EncodeSchema(schema *arrow.Schema, optFns ...ContainerOption) ([]byte, error) {
	return EncodeRecords(schema, nil, optFns...)
}

// DecodeRecords reads an Arrow IPC file container back into a schema and
// record batches. The caller owns the returned records and must Release
// them.
func DecodeRecords(data []byte) (*arrow.Schema, []arrow.Record, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, nil, fmt.Errorf("open IPC container: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	if schema == nil {
		return nil, nil, fmt.Errorf("IPC container has no schema")
	}

	var recs []arrow.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			for _, kept := range recs {
				kept.Release()
			}
			return nil, nil, fmt.Errorf("read IPC record: %w", err)
		}
		rec.Retain()
		recs = append(recs, rec)
	}
	return schema, recs, nil
}

// DecodeSchema reads only the schema of an IPC file container.
func DecodeSchema(data []byte) (*arrow.Schema, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("open IPC container: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	if schema == nil {
		return nil, fmt.Errorf("IPC container has no schema")
	}
	return schema, nil
}

// seekBuffer is a growable in-memory io.WriteSeeker. The IPC file writer
// needs seeking to backfill block offsets in the footer.
type seekBuffer struct {
	data []byte
	pos  int64
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + int64(len(p)); need > int64(len(b.data)) {
		if need > int64(cap(b.data)) {
			grown := make([]byte, need, need*2)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:need]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos += int64(len(p))
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	b.pos = abs
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.data }
