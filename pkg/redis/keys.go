package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultScanBatchSize is the SCAN COUNT hint used when none is configured.
const DefaultScanBatchSize int64 = 500

// ScanEach walks every key matching pattern with SCAN, calling fn once per
// non-empty batch. It never blocks the server the way KEYS does.
// Keys created or removed during the walk may or may not be visited.
func ScanEach(ctx context.Context, client redis.UniversalClient, pattern string, batch int64, fn func(keys []string) error) error {
	if batch <= 0 {
		batch = DefaultScanBatchSize
	}
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, batch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// ScanKeys returns every key matching pattern. SCAN may report a key twice;
// the result is de-duplicated.
func ScanKeys(ctx context.Context, client redis.UniversalClient, pattern string, batch int64) ([]string, error) {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	err := ScanEach(ctx, client, pattern, batch, func(batch []string) error {
		for _, k := range batch {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapePattern escapes glob metacharacters so s matches itself literally
// inside a SCAN or KEYS pattern.
func EscapePattern(s string) string {
	return globEscaper.Replace(s)
}
