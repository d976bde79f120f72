package redis

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Healthcheck is a function that checks the health of the database.
// It returns an error if the database is not healthy.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.Ping(ctx).Result(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// ServerInfo holds the INFO fields reported in health checks.
type ServerInfo struct {
	Version         string
	UsedMemory      int64
	UsedMemoryHuman string
}

// Info reads the server and memory sections of INFO. Servers that do not
// implement those sections yield a zero ServerInfo without error.
func Info(ctx context.Context, client redis.UniversalClient) (ServerInfo, error) {
	raw, err := client.Info(ctx, "server", "memory").Result()
	if err != nil {
		return ServerInfo{}, err
	}
	return ParseInfo(raw), nil
}

// ParseInfo extracts ServerInfo from a raw INFO reply.
func ParseInfo(raw string) ServerInfo {
	var info ServerInfo
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "redis_version":
			info.Version = value
		case "used_memory":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				info.UsedMemory = n
			}
		case "used_memory_human":
			info.UsedMemoryHuman = value
		}
	}
	return info
}
