package watermark

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

const watermarkKeyPrefix = "wm:device:"

// admitScript compares the candidate timestamp against the stored watermark
// and advances it atomically, so concurrent reports from the same device
// cannot interleave between read and write.
// KEYS[1] = watermark key, ARGV[1] = ts (unix micros), ARGV[2] = skew (micros)
// Returns 1 when admitted, 0 when stale.
var admitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local ts = tonumber(ARGV[1])
local skew = tonumber(ARGV[2])
if current then
	current = tonumber(current)
	if ts < current - skew then
		return 0
	end
	if ts > current then
		redis.call('SET', KEYS[1], ts)
	end
else
	redis.call('SET', KEYS[1], ts)
end
return 1
`)

// RedisStore shares device watermarks across tracker instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Admit checks and advances the device watermark atomically.
func (s *RedisStore) Admit(ctx context.Context, device id.DeviceID, ts time.Time, skew time.Duration) (bool, error) {
	key := watermarkKeyPrefix + device.String()
	res, err := admitScript.Run(ctx, s.client, []string{key},
		ts.UnixMicro(), skew.Microseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("admit watermark: %w", err)
	}
	return res == 1, nil
}

// Last returns the current watermark for the device.
func (s *RedisStore) Last(ctx context.Context, device id.DeviceID) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, watermarkKeyPrefix+device.String()).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark: %w", err)
	}
	micros, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse watermark %q: %w", val, err)
	}
	return time.UnixMicro(micros), true, nil
}
