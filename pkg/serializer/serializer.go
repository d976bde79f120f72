package serializer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/logger"
)

// DefaultMaxPayloadSize is the estimated in-memory frame size above which
// Serialize refuses to encode.
const DefaultMaxPayloadSize int64 = 500 << 20

// Stats describes one encode or decode. It is informational only.
type Stats struct {
	Method      Method        `json:"method"`
	Compressed  bool          `json:"compressed"`
	RawSize     int64         `json:"raw_size_bytes"`
	EncodedSize int64         `json:"encoded_size_bytes"`
	Ratio       float64       `json:"compression_ratio"`
	EncodeTime  time.Duration `json:"encode_time,omitempty"`
	DecodeTime  time.Duration `json:"decode_time,omitempty"`
	Rows        int           `json:"rows"`
	Cols        int           `json:"cols"`
	Fallback    bool          `json:"fallback,omitempty"`
}

// Serializer encodes frames with a preferred codec and retries with a
// fallback codec when the preferred one cannot handle a frame.
// It is safe for concurrent use.
type Serializer struct {
	method      Method
	compression Compression
	maxSize     int64
	logger      *slog.Logger

	preferred Codec
	fallback  Codec
	codecs    map[byte]Codec
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithMethod selects the preferred codec.
func WithMethod(m Method) Option {
	return func(s *Serializer) {
		s.method = m
	}
}

// WithCompression sets block compression for the preferred codec.
// The fallback codec compresses with zlib unless compression is none.
func WithCompression(c Compression) Option {
	return func(s *Serializer) {
		s.compression = c
	}
}

// WithMaxPayloadSize sets the size guard. Zero or negative disables it.
func WithMaxPayloadSize(n int64) Option {
	return func(s *Serializer) {
		s.maxSize = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Serializer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a serializer. Defaults: arrow + zstd, 500 MiB guard.
func New(opts ...Option) (*Serializer, error) {
	s := &Serializer{
		method:      MethodArrow,
		compression: CompressionZstd,
		maxSize:     DefaultMaxPayloadSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cborCodec, err := NewCBORCodec(s.compression != CompressionNone)
	if err != nil {
		return nil, err
	}
	s.fallback = cborCodec

	arrowCompression := s.compression
	if arrowCompression == "" {
		arrowCompression = CompressionZstd
	}
	arrowCodec, err := NewArrowCodec(arrowCompression)
	if err != nil {
		return nil, err
	}

	switch s.method {
	case MethodArrow, "":
		s.method = MethodArrow
		s.preferred = arrowCodec
	case MethodCBOR:
		s.preferred = cborCodec
	default:
		return nil, errors.Join(ErrInvalidOptions, fmt.Errorf("unknown method %q", s.method))
	}

	s.codecs = map[byte]Codec{
		arrowCodec.Tag(): arrowCodec,
		cborCodec.Tag():  cborCodec,
	}
	s.logger = s.logger.With(logger.Component("serializer"))
	return s, nil
}

// MaxPayloadSize returns the configured size guard.
func (s *Serializer) MaxPayloadSize() int64 { return s.maxSize }

// CheckSize returns ErrPayloadTooLarge when the frame's estimated size
// exceeds the guard.
func (s *Serializer) CheckSize(f *frame.Frame) error {
	return CheckSize(f, s.maxSize)
}

// CheckSize is the guard used by Serialize, exposed for stores that keep
// frames without encoding them.
func CheckSize(f *frame.Frame, limit int64) error {
	if limit <= 0 {
		return nil
	}
	if size := f.EstimatedSize(); size > limit {
		return errors.Join(ErrPayloadTooLarge, fmt.Errorf("estimated %d bytes, limit %d", size, limit))
	}
	return nil
}

// Serialize encodes a frame. The returned payload is self-describing.
func (s *Serializer) Serialize(f *frame.Frame) ([]byte, Stats, error) {
	if f == nil {
		return nil, Stats{}, errors.Join(ErrSerialization, ErrNilFrame)
	}
	if err := s.CheckSize(f); err != nil {
		return nil, Stats{}, err
	}

	start := time.Now()
	codec := s.preferred
	payload, err := codec.Encode(f)
	fallback := false
	if err != nil && codec != s.fallback {
		s.logger.Warn("preferred codec failed, using fallback",
			slog.String("preferred", string(codec.Method())),
			slog.String("fallback", string(s.fallback.Method())),
			logger.Error(err),
		)
		codec = s.fallback
		fallback = true
		payload, err = codec.Encode(f)
	}
	if err != nil {
		return nil, Stats{}, errors.Join(ErrSerialization, err)
	}

	stats := newStats(codec, f, payload)
	stats.EncodeTime = time.Since(start)
	stats.Fallback = fallback

	s.logger.Debug("frame serialized",
		slog.String("method", string(stats.Method)),
		slog.Int("rows", stats.Rows),
		slog.Int("cols", stats.Cols),
		slog.Int64("encoded_bytes", stats.EncodedSize),
		slog.Float64("ratio", stats.Ratio),
		logger.Duration(stats.EncodeTime),
	)
	return payload, stats, nil
}

// Deserialize decodes a payload produced by any supported codec.
func (s *Serializer) Deserialize(payload []byte) (*frame.Frame, Stats, error) {
	if len(payload) < headerSize {
		return nil, Stats{}, errors.Join(ErrSerialization, ErrShortPayload)
	}
	codec, ok := s.codecs[payload[0]]
	if !ok {
		return nil, Stats{}, errors.Join(ErrSerialization, ErrUnknownCodec, fmt.Errorf("tag 0x%02x", payload[0]))
	}

	start := time.Now()
	f, err := codec.Decode(payload)
	if err != nil {
		s.logger.Error("payload decode failed",
			slog.String("method", string(codec.Method())),
			slog.Int("payload_bytes", len(payload)),
			logger.Error(err),
		)
		return nil, Stats{}, errors.Join(ErrSerialization, err)
	}

	stats := newStats(codec, f, payload)
	stats.DecodeTime = time.Since(start)
	return f, stats, nil
}

func newStats(codec Codec, f *frame.Frame, payload []byte) Stats {
	rows, cols := f.Shape()
	raw := f.EstimatedSize()
	ratio := 1.0
	if len(payload) > 0 {
		ratio = float64(raw) / float64(len(payload))
	}
	return Stats{
		Method:      codec.Method(),
		Compressed:  len(payload) >= headerSize && payload[1]&flagCompressed != 0,
		RawSize:     raw,
		EncodedSize: int64(len(payload)),
		Ratio:       ratio,
		Rows:        rows,
		Cols:        cols,
	}
}
