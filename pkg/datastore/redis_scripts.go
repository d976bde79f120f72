package datastore

import goredis "github.com/redis/go-redis/v9"

// Every script that writes session keys first checks that meta exists, so a
// write racing with expiry never leaves keys without a TTL behind.

// createScript: KEYS meta, data, versions, missing, audit.
// ARGV ttl_ms, payload, audit entry, meta field/value pairs...
var createScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("DEL", KEYS[3], KEYS[4], KEYS[5])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 4))
redis.call("PEXPIRE", KEYS[1], ARGV[1])
redis.call("RPUSH", KEYS[5], ARGV[3])
redis.call("PEXPIRE", KEYS[5], ARGV[1])
return 1
`)

// updateScript: KEYS meta, data. ARGV payload, meta field/value pairs...
var updateScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("SET", KEYS[2], ARGV[1], "PX", redis.call("HGET", KEYS[1], "ttl_ms"))
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
return 1
`)

// touchScript: KEYS meta. ARGV last_accessed, new ttl_ms (0 keeps).
// Returns the effective ttl_ms, 0 when the session is gone.
var touchScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("HSET", KEYS[1], "ttl_ms", ARGV[2])
end
redis.call("HSET", KEYS[1], "last_accessed", ARGV[1])
return tonumber(redis.call("HGET", KEYS[1], "ttl_ms")) or 0
`)

// hashPatchScript: KEYS meta, target hash. ARGV n, n fields to delete,
// field/value pairs to set...
var hashPatchScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
local n = tonumber(ARGV[1])
for i = 2, n + 1 do
	redis.call("HDEL", KEYS[2], ARGV[i])
end
if #ARGV > n + 1 then
	redis.call("HSET", KEYS[2], unpack(ARGV, n + 2))
end
return 1
`)

// appendScript: KEYS meta, list. ARGV entry.
var appendScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
return 1
`)

// allocVersionScript: KEYS meta. Returns {version_seq, rows} or nil.
var allocVersionScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
local seq = redis.call("HINCRBY", KEYS[1], "version_seq", 1)
return {seq, redis.call("HGET", KEYS[1], "rows")}
`)

// commitVersionScript: KEYS meta, versions, version snapshot, evicted
// snapshots... ARGV payload, record JSON, max versions.
var commitVersionScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
local ttl = redis.call("HGET", KEYS[1], "ttl_ms")
redis.call("SET", KEYS[3], ARGV[1], "PX", ttl)
redis.call("RPUSH", KEYS[2], ARGV[2])
redis.call("LTRIM", KEYS[2], -tonumber(ARGV[3]), -1)
for i = 4, #KEYS do
	redis.call("DEL", KEYS[i])
end
redis.call("HINCRBY", KEYS[1], "current_version", 1)
return 1
`)

// undoScript: KEYS meta, data, versions, version snapshot.
// ARGV payload, shape field/value pairs...
var undoScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("RPOP", KEYS[3])
redis.call("SET", KEYS[2], ARGV[1], "PX", redis.call("HGET", KEYS[1], "ttl_ms"))
redis.call("HINCRBY", KEYS[1], "current_version", -1)
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("DEL", KEYS[4])
return 1
`)
