package datastore

import (
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

// BackendType names a storage backend.
type BackendType string

const (
	BackendLocal  BackendType = "local"
	BackendRemote BackendType = "redis"
)

// Metadata describes a session without its data.
type Metadata struct {
	SessionID      string            `json:"session_id"`
	Filename       string            `json:"filename"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessed   time.Time         `json:"last_accessed"`
	TTL            time.Duration     `json:"ttl"`
	CurrentVersion int               `json:"current_version"`
	Rows           int               `json:"rows"`
	Cols           int               `json:"cols"`
	ColumnNames    []string          `json:"column_names"`
	ColumnTypes    map[string]string `json:"column_types"`
	Attributes     map[string]string `json:"attributes,omitempty"`

	// Serialization holds stats of the last encode. Remote backend only.
	Serialization *serializer.Stats `json:"serialization,omitempty"`
}

// ExpiresAt is the instant the session lapses unless touched.
func (m Metadata) ExpiresAt() time.Time {
	return m.LastAccessed.Add(m.TTL)
}

func (m Metadata) clone() Metadata {
	c := m
	c.ColumnNames = append([]string(nil), m.ColumnNames...)
	c.ColumnTypes = maps.Clone(m.ColumnTypes)
	c.Attributes = maps.Clone(m.Attributes)
	if m.Serialization != nil {
		s := *m.Serialization
		c.Serialization = &s
	}
	return c
}

func (m *Metadata) setShape(f *frame.Frame) {
	m.Rows, m.Cols = f.Shape()
	m.ColumnNames = f.ColumnNames()
	m.ColumnTypes = f.ColumnTypes()
}

// MetadataPatch is a partial metadata update. A nil Filename leaves the
// filename unchanged. Attributes are merged; an empty value deletes the key.
type MetadataPatch struct {
	Filename   *string
	Attributes map[string]string
}

func (p MetadataPatch) apply(m *Metadata) {
	if p.Filename != nil {
		m.Filename = *p.Filename
	}
	for k, v := range p.Attributes {
		if v == "" {
			delete(m.Attributes, k)
			continue
		}
		if m.Attributes == nil {
			m.Attributes = make(map[string]string)
		}
		m.Attributes[k] = v
	}
}

// VersionRecord describes one undoable snapshot.
type VersionRecord struct {
	VersionID     int       `json:"version_id"`
	Timestamp     time.Time `json:"timestamp"`
	ActionSummary string    `json:"action_summary"`
	RowsBefore    int       `json:"rows_before"`
	RowsAfter     int       `json:"rows_after"`
}

// TempData is the input for temporary multi-sheet storage.
// SheetOrder may be empty, in which case sheets are ordered by name.
type TempData struct {
	Filename   string
	Sheets     map[string]*frame.Frame
	SheetOrder []string
}

func (d TempData) validate() error {
	if len(d.Sheets) == 0 {
		return invalidInput("temp storage needs at least one sheet")
	}
	for name, f := range d.Sheets {
		if name == "" || f == nil {
			return invalidInput("temp storage sheet must have a name and a frame")
		}
	}
	for _, name := range d.SheetOrder {
		if _, ok := d.Sheets[name]; !ok {
			return invalidInput("sheet order names unknown sheet %q", name)
		}
	}
	return nil
}

func (d TempData) order() []string {
	if len(d.SheetOrder) > 0 {
		return append([]string(nil), d.SheetOrder...)
	}
	return slices.Sorted(maps.Keys(d.Sheets))
}

// TempRecord is temporary storage as returned to callers.
type TempRecord struct {
	ID         string
	Filename   string
	Sheets     map[string]*frame.Frame
	SheetOrder []string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

func (r *TempRecord) clone() *TempRecord {
	c := *r
	c.SheetOrder = append([]string(nil), r.SheetOrder...)
	c.Sheets = make(map[string]*frame.Frame, len(r.Sheets))
	for name, f := range r.Sheets {
		c.Sheets[name] = f.Clone()
	}
	return &c
}

// Health reports backend reachability and load.
type Health struct {
	Backend        BackendType   `json:"backend"`
	Reachable      bool          `json:"reachable"`
	Latency        time.Duration `json:"latency"`
	ActiveSessions int           `json:"active_sessions"`
	Fallback       bool          `json:"fallback"`
	ServerVersion  string        `json:"server_version,omitempty"`
	UsedMemory     int64         `json:"used_memory_bytes,omitempty"`
	Error          string        `json:"error,omitempty"`
}
