// Package frame provides the in-memory tabular structure shared by the
// serializer and the session data store.
//
// A Frame is an ordered list of named columns of equal length. Each column has
// a Kind (int64, float64, string, bool, datetime, category) and an optional
// validity mask for nulls.
//
//	f, err := frame.New(
//	    frame.Ints("id", 1, 2, 3),
//	    frame.Floats("weight", 70.5, 81.2, 0).WithNulls(2),
//	    frame.Categories("group", "a", "b", "a"),
//	)
//
// Frames are values owned by one goroutine at a time. Stores clone them on the
// way in and on the way out, so callers may mutate what they receive.
package frame
