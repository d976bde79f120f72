package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still stores the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisMutex implements Mutex with SET NX PX and a compare-and-delete script.
// Any store speaking the Redis protocol with Lua support works.
type RedisMutex struct {
	client redis.UniversalClient
}

func NewRedisMutex(client redis.UniversalClient) *RedisMutex {
	return &RedisMutex{client: client}
}

func (m *RedisMutex) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	ok, err := m.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (m *RedisMutex) Release(ctx context.Context, key, owner string) (bool, error) {
	n, err := releaseScript.Run(ctx, m.client, []string{key}, owner).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n == 1, nil
}
