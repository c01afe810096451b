package sequence

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/erazemk/zahtevki/internal/db"
)

const redisKeyPrefix = "zahtevki:sequence:"

// incrFrom raises the counter to at least ARGV[1] and increments it.
var incrFrom = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call("SET", KEYS[1], floor)
end
return redis.call("INCR", KEYS[1])
`)

// Redis keeps counters in Redis. A rolled back transaction leaves a gap.
type Redis struct {
	client *redis.Client
}

// NewRedis returns a Redis-backed sequencer.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Next implements Sequencer. The Redis counter never falls behind the
// table's next_number and every issued number is written back to the
// table, so switching backends or losing the key does not reuse references.
func (r *Redis) Next(ctx context.Context, q db.Querier, code string) (string, error) {
	d, err := lookup(ctx, q, code)
	if err != nil {
		return "", err
	}

	n, err := incrFrom.Run(ctx, r.client, []string{redisKeyPrefix + code}, d.next-1).Int64()
	if err != nil {
		return "", fmt.Errorf("incrementing sequence %s: %w", code, err)
	}
	if err := advanceTo(ctx, q, code, n+1); err != nil {
		return "", err
	}
	return d.format(n), nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
