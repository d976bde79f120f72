package datastore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tabkit/pkg/datastore"
)

func TestFormatAuditEntry(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 2, 15, 4, 5, 999, time.UTC)
	assert.Equal(t, "[2024-01-02 15:04:05] Filled 3 cells", datastore.FormatAuditEntry(at, "Filled 3 cells"))
}

func TestParseInitialRowCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []string
		want    int
		ok      bool
	}{
		{
			name:    "creation entry",
			entries: []string{"[2024-01-02 15:04:05] Session created. Original file: 'a.csv'. Initial rows: 1234"},
			want:    1234,
			ok:      true,
		},
		{
			name: "only the first entry counts",
			entries: []string{
				"[2024-01-02 15:04:05] Session created. Original file: 'a.csv'. Initial rows: 10",
				"[2024-01-02 15:04:06] Note: Initial rows: 20",
			},
			want: 10,
			ok:   true,
		},
		{
			name: "later entry is ignored without a creation entry",
			entries: []string{
				"[2024-01-02 15:04:05] Dropped rows",
				"[2024-01-02 15:04:06] Initial rows: 10",
			},
		},
		{name: "no entry", entries: []string{"[2024-01-02 15:04:05] Dropped rows"}},
		{name: "empty log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, ok := datastore.ParseInitialRowCount(tt.entries)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, datastore.IsRetryable(datastore.ErrLockTimeout))
	assert.True(t, datastore.IsRetryable(errors.Join(datastore.ErrBackendUnavailable, errors.New("dial tcp: refused"))))
	assert.False(t, datastore.IsRetryable(datastore.ErrSessionNotFound))
	assert.False(t, datastore.IsRetryable(nil))
}
