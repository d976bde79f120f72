package serializer

import "github.com/dmitrymomot/tabkit/pkg/frame"

// Method names a serialization codec.
type Method string

const (
	MethodArrow Method = "arrow"
	MethodCBOR  Method = "cbor"
)

// Compression names the block compression applied by a codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Payload header: one tag byte naming the codec, one flags byte.
const (
	headerSize = 2

	tagArrow byte = 'A'
	tagCBOR  byte = 'C'

	flagCompressed byte = 1 << 0
)

// Codec encodes frames to self-describing payloads and back.
// Encoded payloads start with the codec header.
type Codec interface {
	Method() Method
	Tag() byte
	Encode(f *frame.Frame) ([]byte, error)
	Decode(payload []byte) (*frame.Frame, error)
}
