// Package redis provides helpers for connecting to a Redis server and
// walking its keyspace.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the connection using the supplied Config.
//   - ScanKeys and ScanEach, SCAN-based key iteration that never blocks the
//     server, plus EscapePattern for building literal match patterns.
//   - Healthcheck and Info for liveness probes and health reports.
//
// Config fields are populated from environment variables via
// github.com/caarlos0/env.
//
// # Usage
//
//	import "github.com/dmitrymomot/tabkit/pkg/redis"
//
//	client, err := redis.Connect(ctx, redis.DefaultConfig())
//	if err != nil {
//	    // handle error
//	}
//	defer client.Close()
//
//	keys, err := redis.ScanKeys(ctx, client, "tabkit:"+redis.EscapePattern(id)+":*", 500)
//
// # Errors
//
// Sentinel errors such as ErrRedisNotReady wrap the underlying go-redis errors
// using errors.Join, so errors.Is works on both.
package redis
