package serializer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/ipc"
	"github.com/apache/arrow/go/v16/arrow/memory"

	"github.com/dmitrymomot/tabkit/pkg/frame"
)

// kindMetaKey stores the frame kind on each Arrow field so string and
// category columns stay distinguishable after a round trip.
const kindMetaKey = "tabkit.kind"

// Nanosecond timestamps cover roughly years 1678 through 2262.
var (
	minArrowTime = time.Unix(0, -1<<63+1)
	maxArrowTime = time.Unix(0, 1<<63-1)
)

var timestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

var categoryType = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Int32,
	ValueType: arrow.BinaryTypes.String,
}

// ArrowCodec writes a frame as a single-batch Arrow IPC stream with
// per-buffer compression. Category columns become dictionary arrays.
type ArrowCodec struct {
	compression Compression
	mem         memory.Allocator
}

// NewArrowCodec creates the columnar codec. Supported compressions are
// zstd, lz4 and none.
func NewArrowCodec(compression Compression) (*ArrowCodec, error) {
	switch compression {
	case CompressionZstd, CompressionLZ4, CompressionNone:
	case "":
		compression = CompressionZstd
	default:
		return nil, errors.Join(ErrInvalidOptions, fmt.Errorf("arrow compression %q", compression))
	}
	return &ArrowCodec{compression: compression, mem: memory.NewGoAllocator()}, nil
}

func (c *ArrowCodec) Method() Method { return MethodArrow }

func (c *ArrowCodec) Tag() byte { return tagArrow }

func (c *ArrowCodec) Encode(f *frame.Frame) ([]byte, error) {
	if f.NumCols() == 0 {
		return nil, errors.Join(ErrIncompatible, errors.New("arrow: frame has no columns"))
	}

	fields := make([]arrow.Field, 0, f.NumCols())
	arrs := make([]arrow.Array, 0, f.NumCols())
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()

	for _, col := range f.Columns() {
		dt, err := arrowType(col.Kind)
		if err != nil {
			return nil, err
		}
		arr, err := c.buildArray(dt, col)
		if err != nil {
			return nil, errors.Join(err, fmt.Errorf("arrow: column %q", col.Name))
		}
		arrs = append(arrs, arr)
		fields = append(fields, arrow.Field{
			Name:     col.Name,
			Type:     dt,
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{kindMetaKey}, []string{col.Kind.String()}),
		})
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrs, int64(f.NumRows()))
	defer rec.Release()

	var buf bytes.Buffer
	flags := byte(0)
	if c.compression != CompressionNone {
		flags |= flagCompressed
	}
	buf.Write([]byte{tagArrow, flags})

	w := ipc.NewWriter(&buf, c.writerOptions(schema)...)
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ArrowCodec) writerOptions(schema *arrow.Schema) []ipc.Option {
	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(c.mem)}
	switch c.compression {
	case CompressionZstd:
		opts = append(opts, ipc.WithZstd())
	case CompressionLZ4:
		opts = append(opts, ipc.WithLZ4())
	}
	return opts
}

func (c *ArrowCodec) Decode(payload []byte) (*frame.Frame, error) {
	if len(payload) < headerSize || payload[0] != tagArrow {
		return nil, ErrUnknownCodec
	}

	r, err := ipc.NewReader(bytes.NewReader(payload[headerSize:]), ipc.WithAllocator(c.mem))
	if err != nil {
		return nil, err
	}
	defer r.Release()

	schema := r.Schema()
	cols := make([]frame.Column, schema.NumFields())
	for i, field := range schema.Fields() {
		kind, err := fieldKind(field)
		if err != nil {
			return nil, err
		}
		cols[i] = frame.Column{Name: field.Name, Kind: kind}
	}

	for r.Next() {
		rec := r.Record()
		for i := range cols {
			if err := appendArray(&cols[i], rec.Column(i)); err != nil {
				return nil, errors.Join(err, fmt.Errorf("arrow: column %q", cols[i].Name))
			}
		}
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	for i := range cols {
		compactValidity(&cols[i])
	}
	return frame.New(cols...)
}

func arrowType(kind frame.Kind) (arrow.DataType, error) {
	switch kind {
	case frame.KindInt:
		return arrow.PrimitiveTypes.Int64, nil
	case frame.KindFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case frame.KindString:
		return arrow.BinaryTypes.String, nil
	case frame.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case frame.KindDatetime:
		return timestampType, nil
	case frame.KindCategory:
		return categoryType, nil
	default:
		return nil, errors.Join(ErrIncompatible, frame.ErrUnknownKind)
	}
}

// fieldKind prefers the kind recorded in field metadata and falls back to
// the Arrow type for streams written by other producers.
func fieldKind(field arrow.Field) (frame.Kind, error) {
	if idx := field.Metadata.FindKey(kindMetaKey); idx >= 0 {
		return frame.ParseKind(field.Metadata.Values()[idx])
	}
	switch field.Type.ID() {
	case arrow.INT64:
		return frame.KindInt, nil
	case arrow.FLOAT64:
		return frame.KindFloat, nil
	case arrow.STRING:
		return frame.KindString, nil
	case arrow.BOOL:
		return frame.KindBool, nil
	case arrow.TIMESTAMP:
		return frame.KindDatetime, nil
	case arrow.DICTIONARY:
		return frame.KindCategory, nil
	default:
		return frame.KindInvalid, errors.Join(ErrIncompatible, fmt.Errorf("arrow type %s", field.Type))
	}
}

func (c *ArrowCodec) buildArray(dt arrow.DataType, col frame.Column) (arrow.Array, error) {
	b := array.NewBuilder(c.mem, dt)
	defer b.Release()
	b.Reserve(col.Len())

	switch col.Kind {
	case frame.KindInt:
		ib := b.(*array.Int64Builder)
		for i, v := range col.Ints {
			if col.IsNull(i) {
				ib.AppendNull()
				continue
			}
			ib.Append(v)
		}
	case frame.KindFloat:
		fb := b.(*array.Float64Builder)
		for i, v := range col.Floats {
			if col.IsNull(i) {
				fb.AppendNull()
				continue
			}
			fb.Append(v)
		}
	case frame.KindString:
		sb := b.(*array.StringBuilder)
		for i, v := range col.Strings {
			if col.IsNull(i) {
				sb.AppendNull()
				continue
			}
			sb.Append(v)
		}
	case frame.KindBool:
		bb := b.(*array.BooleanBuilder)
		for i, v := range col.Bools {
			if col.IsNull(i) {
				bb.AppendNull()
				continue
			}
			bb.Append(v)
		}
	case frame.KindDatetime:
		tb := b.(*array.TimestampBuilder)
		for i, v := range col.Times {
			if col.IsNull(i) {
				tb.AppendNull()
				continue
			}
			if v.Before(minArrowTime) || v.After(maxArrowTime) {
				return nil, errors.Join(ErrIncompatible, fmt.Errorf("datetime %s outside nanosecond range", v))
			}
			tb.Append(arrow.Timestamp(v.UnixNano()))
		}
	case frame.KindCategory:
		db := b.(*array.BinaryDictionaryBuilder)
		for i, v := range col.Strings {
			if col.IsNull(i) {
				db.AppendNull()
				continue
			}
			if err := db.AppendString(v); err != nil {
				return nil, err
			}
		}
	}
	return b.NewArray(), nil
}

func appendArray(col *frame.Column, arr arrow.Array) error {
	n := arr.Len()
	for i := range n {
		col.Valid = append(col.Valid, arr.IsValid(i))
	}

	switch col.Kind {
	case frame.KindInt:
		a, ok := arr.(*array.Int64)
		if !ok {
			return typeMismatch(col.Kind, arr)
		}
		for i := range n {
			col.Ints = append(col.Ints, a.Value(i))
		}
	case frame.KindFloat:
		a, ok := arr.(*array.Float64)
		if !ok {
			return typeMismatch(col.Kind, arr)
		}
		for i := range n {
			col.Floats = append(col.Floats, a.Value(i))
		}
	case frame.KindString:
		a, ok := arr.(*array.String)
		if !ok {
			return typeMismatch(col.Kind, arr)
		}
		for i := range n {
			col.Strings = append(col.Strings, a.Value(i))
		}
	case frame.KindBool:
		a, ok := arr.(*array.Boolean)
		if !ok {
			return typeMismatch(col.Kind, arr)
		}
		for i := range n {
			col.Bools = append(col.Bools, a.Value(i))
		}
	case frame.KindDatetime:
		a, ok := arr.(*array.Timestamp)
		if !ok {
			return typeMismatch(col.Kind, arr)
		}
		for i := range n {
			col.Times = append(col.Times, time.Unix(0, int64(a.Value(i))).UTC())
		}
	case frame.KindCategory:
		a, ok := arr.(*array.Dictionary)
		if !ok {
			return typeMismatch(col.Kind, arr)
		}
		dict, ok := a.Dictionary().(*array.String)
		if !ok {
			return typeMismatch(col.Kind, a.Dictionary())
		}
		for i := range n {
			if a.IsNull(i) {
				col.Strings = append(col.Strings, "")
				continue
			}
			col.Strings = append(col.Strings, dict.Value(a.GetValueIndex(i)))
		}
	}
	return nil
}

func typeMismatch(kind frame.Kind, arr arrow.Array) error {
	return errors.Join(ErrSerialization, fmt.Errorf("arrow: %s column stored as %s", kind, arr.DataType()))
}

// compactValidity drops an all-valid mask so decoded columns match frames
// built without nulls.
func compactValidity(col *frame.Column) {
	for _, ok := range col.Valid {
		if !ok {
			return
		}
	}
	col.Valid = nil
}
