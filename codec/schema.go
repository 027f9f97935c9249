package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// schemaDoc is the JSON shape of a schema definition.
type schemaDoc struct {
	Fields []fieldDoc `json:"fields"`
}

type fieldDoc struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// ParseSchemaJSON builds an Arrow schema from its JSON definition.
//
// Field names must be unique and nullable defaults to true when omitted.
// Supported type tags are int8, int16, int32, int64, float16, float32,
// float64, boolean, string, binary and fixed_size_list[T;N] where T is a
// numeric tag and N a positive dimension.
func ParseSchemaJSON(c Codec, data []byte) (*arrow.Schema, error) {
	if c == nil {
		c = Default
	}

	var doc schemaDoc
	if err := c.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	if doc.Fields == nil {
		return nil, fmt.Errorf("schema JSON must have a fields array")
	}

	fields := make([]arrow.Field, 0, len(doc.Fields))
	seen := make(map[string]struct{}, len(doc.Fields))

	for _, fd := range doc.Fields {
		if fd.Name == "" {
			return nil, fmt.Errorf("field must have a name")
		}
		if _, dup := seen[fd.Name]; dup {
			return nil, fmt.Errorf("duplicate field name: %s", fd.Name)
		}
		seen[fd.Name] = struct{}{}

		if fd.Type == "" {
			return nil, fmt.Errorf("field %s must have a type", fd.Name)
		}
		dt, err := parseTypeTag(fd.Type)
		if err != nil {
			return nil, err
		}

		nullable := true
		if fd.Nullable != nil {
			nullable = *fd.Nullable
		}
		fields = append(fields, arrow.Field{Name: fd.Name, Type: dt, Nullable: nullable})
	}

	return arrow.NewSchema(fields, nil), nil
}

// EncodeSchemaJSON renders an Arrow schema in the JSON schema dialect.
// Types outside the dialect render as "unknown" rather than failing, so
// callers can still inspect tables created through richer paths.
func EncodeSchemaJSON(c Codec, schema *arrow.Schema) ([]byte, error) {
	if c == nil {
		c = Default
	}

	doc := schemaDoc{Fields: make([]fieldDoc, 0, schema.NumFields())}
	for _, f := range schema.Fields() {
		nullable := f.Nullable
		doc.Fields = append(doc.Fields, fieldDoc{
			Name:     f.Name,
			Type:     typeTag(f.Type),
			Nullable: &nullable,
		})
	}
	return c.Marshal(doc)
}

func parseTypeTag(tag string) (arrow.DataType, error) {
	switch tag {
	case "int8":
		return arrow.PrimitiveTypes.Int8, nil
	case "int16":
		return arrow.PrimitiveTypes.Int16, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float16":
		return arrow.FixedWidthTypes.Float16, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "boolean":
		return arrow.FixedWidthTypes.Boolean, nil
	case "string":
		return arrow.BinaryTypes.String, nil
	case "binary":
		return arrow.BinaryTypes.Binary, nil
	}

	if inner, ok := strings.CutPrefix(tag, "fixed_size_list["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok {
			return nil, fmt.Errorf("unsupported data type: %s", tag)
		}
		elemTag, dimStr, ok := strings.Cut(inner, ";")
		if !ok {
			return nil, fmt.Errorf("unsupported data type: %s", tag)
		}
		elem, err := parseTypeTag(strings.TrimSpace(elemTag))
		if err != nil || !numericType(elem) {
			return nil, fmt.Errorf("unsupported vector element type in %s", tag)
		}
		dim, err := strconv.Atoi(strings.TrimSpace(dimStr))
		if err != nil || dim <= 0 {
			return nil, fmt.Errorf("invalid vector dimension in %s", tag)
		}
		return arrow.FixedSizeListOf(int32(dim), elem), nil
	}

	return nil, fmt.Errorf("unsupported data type: %s", tag)
}

func typeTag(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.INT8:
		return "int8"
	case arrow.INT16:
		return "int16"
	case arrow.INT32:
		return "int32"
	case arrow.INT64:
		return "int64"
	case arrow.FLOAT16:
		return "float16"
	case arrow.FLOAT32:
		return "float32"
	case arrow.FLOAT64:
		return "float64"
	case arrow.BOOL:
		return "boolean"
	case arrow.STRING:
		return "string"
	case arrow.BINARY:
		return "binary"
	case arrow.FIXED_SIZE_LIST:
		t := dt.(*arrow.FixedSizeListType)
		if !numericType(t.Elem()) {
			return "unknown"
		}
		return fmt.Sprintf("fixed_size_list[%s;%d]", typeTag(t.Elem()), t.Len())
	default:
		return "unknown"
	}
}

func numericType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return true
	default:
		return false
	}
}
