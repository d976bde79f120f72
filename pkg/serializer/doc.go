// Package serializer converts frames to byte payloads and back.
//
// Two codecs are provided:
//
//   - ArrowCodec (preferred): an Apache Arrow IPC stream with zstd or lz4
//     buffer compression. Category columns are dictionary encoded.
//   - CBORCodec (fallback): a column-major CBOR document, zlib compressed.
//
// Every payload begins with a two byte header (codec tag, flags), so
// Deserialize picks the right codec without configuration. Serialize falls
// back to CBOR when the preferred codec reports ErrIncompatible or fails for
// any other reason, for example datetimes outside Arrow's nanosecond range.
//
//	s, err := serializer.New(
//	    serializer.WithMethod(serializer.MethodArrow),
//	    serializer.WithCompression(serializer.CompressionZstd),
//	    serializer.WithMaxPayloadSize(500<<20),
//	)
//	payload, stats, err := s.Serialize(f)
//	restored, _, err := s.Deserialize(payload)
//
// Frames whose estimated in-memory size exceeds the guard are rejected with
// ErrPayloadTooLarge before any encoding work. Decode failures are wrapped in
// ErrSerialization and should be treated as data corruption.
package serializer
