package frame

import (
	"errors"
	"fmt"
)

// Frame is an ordered set of equally sized columns.
// A Frame is not safe for concurrent mutation; stores hand out clones.
type Frame struct {
	columns []Column
}

// New builds a frame from columns, taking ownership of their slices.
// Columns must have unique non-empty names and equal lengths.
func New(columns ...Column) (*Frame, error) {
	seen := make(map[string]struct{}, len(columns))
	rows := -1
	for _, c := range columns {
		if err := c.validate(); err != nil {
			return nil, errors.Join(err, fmt.Errorf("column %q", c.Name))
		}
		if _, dup := seen[c.Name]; dup {
			return nil, errors.Join(ErrDuplicateColumn, fmt.Errorf("column %q", c.Name))
		}
		seen[c.Name] = struct{}{}
		if rows >= 0 && c.Len() != rows {
			return nil, errors.Join(ErrLengthMismatch, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), rows))
		}
		rows = c.Len()
	}
	return &Frame{columns: columns}, nil
}

// MustNew is like New but panics on invalid input.
func MustNew(columns ...Column) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) NumRows() int {
	if f == nil || len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

func (f *Frame) NumCols() int {
	if f == nil {
		return 0
	}
	return len(f.columns)
}

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) {
	return f.NumRows(), f.NumCols()
}

// Columns returns the frame columns. Callers must not mutate them.
func (f *Frame) Columns() []Column {
	if f == nil {
		return nil
	}
	return f.columns
}

func (f *Frame) ColumnNames() []string {
	names := make([]string, 0, f.NumCols())
	for _, c := range f.Columns() {
		names = append(names, c.Name)
	}
	return names
}

// ColumnTypes maps column names to their kind names.
func (f *Frame) ColumnTypes() map[string]string {
	types := make(map[string]string, f.NumCols())
	for _, c := range f.Columns() {
		types[c.Name] = c.Kind.String()
	}
	return types
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns() {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	cols := make([]Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.Clone()
	}
	return &Frame{columns: cols}
}

// Equal reports whether both frames hold the same columns in the same order
// with the same kinds, nulls and values.
func (f *Frame) Equal(o *Frame) bool {
	if f.NumCols() != o.NumCols() || f.NumRows() != o.NumRows() {
		return false
	}
	for i, c := range f.Columns() {
		if !c.Equal(o.columns[i]) {
			return false
		}
	}
	return true
}

// Take returns a new frame containing the given rows in the given order.
func (f *Frame) Take(rows []int) (*Frame, error) {
	n := f.NumRows()
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, errors.Join(ErrRowOutOfRange, fmt.Errorf("row %d of %d", r, n))
		}
	}
	cols := make([]Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.take(rows)
	}
	return &Frame{columns: cols}, nil
}

// DropNulls returns a new frame without rows that contain a null cell.
func (f *Frame) DropNulls() *Frame {
	keep := make([]int, 0, f.NumRows())
	for r := range f.NumRows() {
		null := false
		for _, c := range f.columns {
			if c.IsNull(r) {
				null = true
				break
			}
		}
		if !null {
			keep = append(keep, r)
		}
	}
	out, _ := f.Take(keep)
	return out
}

// EstimatedSize approximates the in-memory footprint of the frame in bytes.
func (f *Frame) EstimatedSize() int64 {
	var size int64
	for _, c := range f.Columns() {
		size += c.estimatedSize()
	}
	return size
}
