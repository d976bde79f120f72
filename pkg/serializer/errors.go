package serializer

import "errors"

var (
	// ErrPayloadTooLarge is returned before encoding when a frame exceeds the size limit.
	ErrPayloadTooLarge = errors.New("serializer.payload_too_large")

	// ErrSerialization indicates a payload could not be encoded or decoded.
	ErrSerialization = errors.New("serializer.failed")

	// ErrIncompatible is returned by a codec that cannot represent a frame.
	// The serializer reacts by switching to its fallback codec.
	ErrIncompatible = errors.New("serializer.incompatible_frame")

	ErrUnknownCodec   = errors.New("serializer.unknown_codec")
	ErrShortPayload   = errors.New("serializer.short_payload")
	ErrNilFrame       = errors.New("serializer.nil_frame")
	ErrInvalidOptions = errors.New("serializer.invalid_options")
)
