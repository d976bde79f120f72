package frame

import (
	"math"
	"slices"
	"time"
)

// Column is a named, typed vector of cells. Only the slice matching Kind is
// populated; category columns share the Strings slice with string columns.
type Column struct {
	Name    string
	Kind    Kind
	Ints    []int64
	Floats  []float64
	Strings []string
	Bools   []bool
	Times   []time.Time

	// Valid marks non-null cells. A nil mask means every cell is valid.
	Valid []bool
}

func Ints(name string, values ...int64) Column {
	return Column{Name: name, Kind: KindInt, Ints: values}
}

func Floats(name string, values ...float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: values}
}

func Strings(name string, values ...string) Column {
	return Column{Name: name, Kind: KindString, Strings: values}
}

func Bools(name string, values ...bool) Column {
	return Column{Name: name, Kind: KindBool, Bools: values}
}

func Times(name string, values ...time.Time) Column {
	return Column{Name: name, Kind: KindDatetime, Times: values}
}

// Categories builds a categorical column. Values are stored as strings and
// encoded as dictionaries by codecs that support it.
func Categories(name string, values ...string) Column {
	return Column{Name: name, Kind: KindCategory, Strings: values}
}

// WithNulls returns a copy of the column with the given rows marked null.
// Out-of-range rows are ignored.
func (c Column) WithNulls(rows ...int) Column {
	n := c.Len()
	valid := make([]bool, n)
	if c.Valid != nil {
		copy(valid, c.Valid)
	} else {
		for i := range valid {
			valid[i] = true
		}
	}
	for _, r := range rows {
		if r >= 0 && r < n {
			valid[r] = false
		}
	}
	c.Valid = valid
	return c
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	case KindString, KindCategory:
		return len(c.Strings)
	case KindBool:
		return len(c.Bools)
	case KindDatetime:
		return len(c.Times)
	default:
		return 0
	}
}

// IsNull reports whether row i is null.
func (c Column) IsNull(i int) bool {
	return c.Valid != nil && !c.Valid[i]
}

// NullCount returns the number of null cells.
func (c Column) NullCount() int {
	if c.Valid == nil {
		return 0
	}
	n := 0
	for _, ok := range c.Valid {
		if !ok {
			n++
		}
	}
	return n
}

func (c Column) validate() error {
	if c.Name == "" {
		return ErrEmptyColumnName
	}
	if _, ok := kindNames[c.Kind]; !ok {
		return ErrUnknownKind
	}
	if c.Valid != nil && len(c.Valid) != c.Len() {
		return ErrInconsistentColumn
	}
	return nil
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	return Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Ints:    slices.Clone(c.Ints),
		Floats:  slices.Clone(c.Floats),
		Strings: slices.Clone(c.Strings),
		Bools:   slices.Clone(c.Bools),
		Times:   slices.Clone(c.Times),
		Valid:   slices.Clone(c.Valid),
	}
}

// Equal compares name, kind, validity and every non-null value.
// NaN equals NaN and datetimes compare by instant.
func (c Column) Equal(o Column) bool {
	if c.Name != o.Name || c.Kind != o.Kind || c.Len() != o.Len() {
		return false
	}
	for i := range c.Len() {
		if c.IsNull(i) != o.IsNull(i) {
			return false
		}
		if c.IsNull(i) {
			continue
		}
		if !c.cellEqual(o, i) {
			return false
		}
	}
	return true
}

func (c Column) cellEqual(o Column, i int) bool {
	switch c.Kind {
	case KindInt:
		return c.Ints[i] == o.Ints[i]
	case KindFloat:
		a, b := c.Floats[i], o.Floats[i]
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	case KindString, KindCategory:
		return c.Strings[i] == o.Strings[i]
	case KindBool:
		return c.Bools[i] == o.Bools[i]
	case KindDatetime:
		return c.Times[i].Equal(o.Times[i])
	default:
		return false
	}
}

func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Valid != nil {
		out.Valid = make([]bool, len(rows))
		for j, r := range rows {
			out.Valid[j] = c.Valid[r]
		}
	}
	switch c.Kind {
	case KindInt:
		out.Ints = pick(c.Ints, rows)
	case KindFloat:
		out.Floats = pick(c.Floats, rows)
	case KindString, KindCategory:
		out.Strings = pick(c.Strings, rows)
	case KindBool:
		out.Bools = pick(c.Bools, rows)
	case KindDatetime:
		out.Times = pick(c.Times, rows)
	}
	return out
}

func pick[T any](src []T, rows []int) []T {
	out := make([]T, len(rows))
	for j, r := range rows {
		out[j] = src[r]
	}
	return out
}

// estimatedSize approximates the in-memory footprint of the column in bytes.
func (c Column) estimatedSize() int64 {
	size := int64(len(c.Name)) + int64(len(c.Valid))
	switch c.Kind {
	case KindInt:
		size += int64(len(c.Ints)) * 8
	case KindFloat:
		size += int64(len(c.Floats)) * 8
	case KindString, KindCategory:
		for _, s := range c.Strings {
			size += int64(len(s)) + 16
		}
	case KindBool:
		size += int64(len(c.Bools))
	case KindDatetime:
		size += int64(len(c.Times)) * 24
	}
	return size
}
