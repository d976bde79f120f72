package datastore

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const auditTimeLayout = "2006-01-02 15:04:05"

var initialRowsRe = regexp.MustCompile(`Initial rows:\s*(\d+)`)

// FormatAuditEntry prefixes text with a bracketed timestamp.
func FormatAuditEntry(at time.Time, text string) string {
	return "[" + at.Format(auditTimeLayout) + "] " + text
}

func initialAuditText(filename string, rows int) string {
	return fmt.Sprintf("Session created. Original file: '%s'. Initial rows: %d", filename, rows)
}

// ParseInitialRowCount reads the row count recorded by the creation entry,
// which is always the first one. Later entries are never consulted.
func ParseInitialRowCount(entries []string) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	m := initialRowsRe.FindStringSubmatch(entries[0])
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
