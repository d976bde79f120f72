// Package datastore keeps per-session tabular data for interactive cleaning
// workflows: the current frame, a bounded stack of undo snapshots, an audit
// trail, the registry of intentionally missing cells and short-lived
// multi-sheet temp storage.
//
// Two backends implement Backend. MemoryBackend holds everything in process
// and sweeps expired entries on a ticker. RedisBackend stores each session as
// a family of keys under {prefix}:{id}: that share one TTL; every write goes
// through a Lua script that checks the session still exists, so an expired
// session can never be half recreated. Version creation and undo run under a
// per-session lock from package lock.
//
// Open (and New, which wraps it in a Store) picks the backend from Config.
// With FallbackToLocal set, an unreachable Redis is replaced by the memory
// backend, at startup or on the first failing call, and Health reports
// Fallback.
//
// # Usage
//
//	cfg, err := datastore.LoadConfig()
//	if err != nil {
//	    return err
//	}
//	store, err := datastore.New(ctx, cfg, datastore.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	id := store.NewSessionID()
//	if err := store.CreateSession(ctx, id, df, "survey.csv", 0); err != nil {
//	    return err
//	}
//	if _, err := store.CreateVersion(ctx, id, df, "drop nulls"); err != nil {
//	    return err
//	}
//	_ = store.UpdateDataFrame(ctx, id, df.DropNulls())
//	restored, err := store.UndoLastChange(ctx, id)
//
// # Errors
//
// Operations return the sentinels in errors.go, joined with detail where
// useful; match them with errors.Is. IsRetryable reports lock timeouts and
// an unreachable backend.
package datastore
