package serializer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zlib"

	"github.com/dmitrymomot/tabkit/pkg/frame"
)

type wireFrame struct {
	Columns []wireColumn `cbor:"c"`
}

type wireColumn struct {
	Name    string      `cbor:"n"`
	Kind    string      `cbor:"k"`
	Ints    []int64     `cbor:"i,omitempty"`
	Floats  []float64   `cbor:"f,omitempty"`
	Strings []string    `cbor:"s,omitempty"`
	Bools   []bool      `cbor:"b,omitempty"`
	Times   []time.Time `cbor:"t,omitempty"`
	Valid   []bool      `cbor:"v,omitempty"`
}

// CBORCodec is the generic fallback codec: the frame is written column by
// column as CBOR and optionally zlib-compressed. It accepts every frame.
type CBORCodec struct {
	compress bool
	enc      cbor.EncMode
	dec      cbor.DecMode
}

// NewCBORCodec creates the fallback codec.
func NewCBORCodec(compress bool) (*CBORCodec, error) {
	enc, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		return nil, errors.Join(ErrInvalidOptions, err)
	}
	// cells are arbitrary Go strings; accept back whatever bytes were written
	dec, err := cbor.DecOptions{UTF8: cbor.UTF8DecodeInvalid}.DecMode()
	if err != nil {
		return nil, errors.Join(ErrInvalidOptions, err)
	}
	return &CBORCodec{compress: compress, enc: enc, dec: dec}, nil
}

func (c *CBORCodec) Method() Method { return MethodCBOR }

func (c *CBORCodec) Tag() byte { return tagCBOR }

func (c *CBORCodec) Encode(f *frame.Frame) ([]byte, error) {
	wf := wireFrame{Columns: make([]wireColumn, 0, f.NumCols())}
	for _, col := range f.Columns() {
		wf.Columns = append(wf.Columns, wireColumn{
			Name:    col.Name,
			Kind:    col.Kind.String(),
			Ints:    col.Ints,
			Floats:  col.Floats,
			Strings: col.Strings,
			Bools:   col.Bools,
			Times:   col.Times,
			Valid:   col.Valid,
		})
	}

	body, err := c.enc.Marshal(wf)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if !c.compress {
		buf.Grow(headerSize + len(body))
		buf.Write([]byte{tagCBOR, 0})
		buf.Write(body)
		return buf.Bytes(), nil
	}

	buf.Write([]byte{tagCBOR, flagCompressed})
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *CBORCodec) Decode(payload []byte) (*frame.Frame, error) {
	if len(payload) < headerSize || payload[0] != tagCBOR {
		return nil, ErrUnknownCodec
	}

	body := payload[headerSize:]
	if payload[1]&flagCompressed != 0 {
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if body, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	}

	var wf wireFrame
	if err := c.dec.Unmarshal(body, &wf); err != nil {
		return nil, err
	}

	cols := make([]frame.Column, 0, len(wf.Columns))
	for _, wc := range wf.Columns {
		kind, err := frame.ParseKind(wc.Kind)
		if err != nil {
			return nil, errors.Join(err, fmt.Errorf("cbor: column %q", wc.Name))
		}
		col := frame.Column{
			Name:    wc.Name,
			Kind:    kind,
			Ints:    wc.Ints,
			Floats:  wc.Floats,
			Strings: wc.Strings,
			Bools:   wc.Bools,
			Times:   wc.Times,
			Valid:   wc.Valid,
		}
		compactValidity(&col)
		cols = append(cols, col)
	}
	return frame.New(cols...)
}
