package datastore

import "slices"

// normalizeRows sorts and de-duplicates row indices.
func normalizeRows(column string, rows []int) ([]int, error) {
	if column == "" {
		return nil, invalidInput("column name is empty")
	}
	for _, r := range rows {
		if r < 0 {
			return nil, invalidInput("column %q: negative row index %d", column, r)
		}
	}
	out := slices.Clone(rows)
	slices.Sort(out)
	return slices.Compact(out), nil
}

func normalizeBatch(columns map[string][]int) (map[string][]int, error) {
	out := make(map[string][]int, len(columns))
	for column, rows := range columns {
		norm, err := normalizeRows(column, rows)
		if err != nil {
			return nil, err
		}
		out[column] = norm
	}
	return out, nil
}

func cloneMissing(m map[string][]int) map[string][]int {
	out := make(map[string][]int, len(m))
	for column, rows := range m {
		out[column] = slices.Clone(rows)
	}
	return out
}
