package frame

import "errors"

var (
	ErrUnknownKind        = errors.New("frame.unknown_kind")
	ErrLengthMismatch     = errors.New("frame.column_length_mismatch")
	ErrDuplicateColumn    = errors.New("frame.duplicate_column")
	ErrEmptyColumnName    = errors.New("frame.empty_column_name")
	ErrRowOutOfRange      = errors.New("frame.row_out_of_range")
	ErrInconsistentColumn = errors.New("frame.inconsistent_column")
)
