package frame_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabkit/pkg/frame"
)

func sample(t *testing.T) *frame.Frame {
	t.Helper()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f, err := frame.New(
		frame.Ints("id", 1, 2, 3),
		frame.Floats("score", 1.5, math.NaN(), 3.25).WithNulls(1),
		frame.Strings("name", "ann", "bob", "cid"),
		frame.Bools("active", true, false, true),
		frame.Times("seen", ts, ts.Add(time.Hour), ts.Add(2*time.Hour)),
		frame.Categories("group", "a", "b", "a"),
	)
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid frame", func(t *testing.T) {
		f := sample(t)
		rows, cols := f.Shape()
		assert.Equal(t, 3, rows)
		assert.Equal(t, 6, cols)
		assert.Equal(t, []string{"id", "score", "name", "active", "seen", "group"}, f.ColumnNames())
		assert.Equal(t, "category", f.ColumnTypes()["group"])
		assert.Equal(t, "datetime", f.ColumnTypes()["seen"])
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := frame.New(frame.Ints("a", 1, 2), frame.Ints("b", 1))
		assert.ErrorIs(t, err, frame.ErrLengthMismatch)
	})

	t.Run("duplicate column", func(t *testing.T) {
		_, err := frame.New(frame.Ints("a", 1), frame.Strings("a", "x"))
		assert.ErrorIs(t, err, frame.ErrDuplicateColumn)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := frame.New(frame.Ints("", 1))
		assert.ErrorIs(t, err, frame.ErrEmptyColumnName)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := frame.New(frame.Column{Name: "x"})
		assert.ErrorIs(t, err, frame.ErrUnknownKind)
	})

	t.Run("validity mask mismatch", func(t *testing.T) {
		_, err := frame.New(frame.Column{Name: "x", Kind: frame.KindInt, Ints: []int64{1, 2}, Valid: []bool{true}})
		assert.ErrorIs(t, err, frame.ErrInconsistentColumn)
	})

	t.Run("empty frame", func(t *testing.T) {
		f, err := frame.New()
		require.NoError(t, err)
		assert.Equal(t, 0, f.NumRows())
		assert.Equal(t, 0, f.NumCols())
	})
}

func TestFrame_Equal(t *testing.T) {
	t.Parallel()

	a := sample(t)
	b := sample(t)
	assert.True(t, a.Equal(b), "NaN and null cells must compare equal")

	c := a.Clone()
	c.Columns()[0].Ints[0] = 99
	assert.False(t, a.Equal(c))
	assert.Equal(t, int64(1), a.Columns()[0].Ints[0], "clone must not share storage")

	t.Run("null cell values are ignored", func(t *testing.T) {
		x := frame.MustNew(frame.Ints("v", 1, 2).WithNulls(1))
		y := frame.MustNew(frame.Ints("v", 1, 0).WithNulls(1))
		assert.True(t, x.Equal(y))
	})

	t.Run("datetime compares by instant", func(t *testing.T) {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		x := frame.MustNew(frame.Times("t", ts))
		y := frame.MustNew(frame.Times("t", ts.In(time.FixedZone("X", 3600))))
		assert.True(t, x.Equal(y))
	})

	t.Run("kind matters", func(t *testing.T) {
		x := frame.MustNew(frame.Strings("g", "a"))
		y := frame.MustNew(frame.Categories("g", "a"))
		assert.False(t, x.Equal(y))
	})
}

func TestFrame_TakeAndDropNulls(t *testing.T) {
	t.Parallel()

	f := sample(t)

	sub, err := f.Take([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NumRows())
	id, ok := sub.Column("id")
	require.True(t, ok)
	assert.Equal(t, []int64{3, 1}, id.Ints)

	_, err = f.Take([]int{3})
	assert.ErrorIs(t, err, frame.ErrRowOutOfRange)

	clean := f.DropNulls()
	assert.Equal(t, 2, clean.NumRows())
	score, _ := clean.Column("score")
	assert.Equal(t, 0, score.NullCount())
}

func TestFrame_EstimatedSize(t *testing.T) {
	t.Parallel()

	small := frame.MustNew(frame.Ints("v", 1))
	big := frame.MustNew(frame.Ints("v", make([]int64, 1000)...))
	assert.Greater(t, big.EstimatedSize(), small.EstimatedSize())
	assert.GreaterOrEqual(t, big.EstimatedSize(), int64(8000))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range []frame.Kind{frame.KindInt, frame.KindFloat, frame.KindString, frame.KindBool, frame.KindDatetime, frame.KindCategory} {
		got, err := frame.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := frame.ParseKind("decimal")
	assert.ErrorIs(t, err, frame.ErrUnknownKind)
}
