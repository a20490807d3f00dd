package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"inboxtriage/internal/model"
)

// stats hash 字段
const (
	fieldProcessed   = "processed"
	fieldCategorized = "categorized"
	fieldLastReset   = "last_reset"
)

// KEYS[1]=stats ARGV[1]=processed ARGV[2]=categorized ARGV[3]=now(ms)
var incrementScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'last_reset') == 0 then
  redis.call('HSET', KEYS[1], 'last_reset', ARGV[3])
end
local p = redis.call('HINCRBY', KEYS[1], 'processed', ARGV[1])
local c = redis.call('HINCRBY', KEYS[1], 'categorized', ARGV[2])
return {p, c, redis.call('HGET', KEYS[1], 'last_reset')}
`)

// KEYS[1]=stats ARGV[1]=now(ms) ARGV[2]=maxAge(ms)
// 返回 {reset, processed, categorized, last_reset}
var resetIfStaleScript = redis.NewScript(`
local lr = redis.call('HGET', KEYS[1], 'last_reset')
if lr and (tonumber(ARGV[1]) - tonumber(lr)) <= tonumber(ARGV[2]) then
  local p = redis.call('HGET', KEYS[1], 'processed') or '0'
  local c = redis.call('HGET', KEYS[1], 'categorized') or '0'
  return {0, p, c, lr}
end
redis.call('HSET', KEYS[1], 'processed', 0, 'categorized', 0, 'last_reset', ARGV[1])
return {1, 0, 0, ARGV[1]}
`)

// RedisStore 基于 go-redis 的 Store 实现
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) GetEnabled(ctx context.Context) (bool, error) {
	v, err := s.rdb.Get(ctx, KeyEnabled).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get enabled: %w", err)
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse enabled %q: %w", v, err)
	}
	return enabled, nil
}

func (s *RedisStore) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.rdb.Set(ctx, KeyEnabled, strconv.FormatBool(enabled), 0).Err(); err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	return nil
}

func (s *RedisStore) InitStats(ctx context.Context, now time.Time) (model.Stats, error) {
	pipe := s.rdb.TxPipeline()
	pipe.HSetNX(ctx, KeyStats, fieldProcessed, 0)
	pipe.HSetNX(ctx, KeyStats, fieldCategorized, 0)
	pipe.HSetNX(ctx, KeyStats, fieldLastReset, now.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Stats{}, fmt.Errorf("init stats: %w", err)
	}
	return s.GetStats(ctx)
}

func (s *RedisStore) GetStats(ctx context.Context) (model.Stats, error) {
	m, err := s.rdb.HGetAll(ctx, KeyStats).Result()
	if err != nil {
		return model.Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return statsFromValues(m[fieldProcessed], m[fieldCategorized], m[fieldLastReset])
}

func (s *RedisStore) IncrementStats(ctx context.Context, delta model.StatsDelta, now time.Time) (model.Stats, error) {
	res, err := incrementScript.Run(ctx, s.rdb, []string{KeyStats},
		delta.Processed, delta.Categorized, now.UnixMilli()).Slice()
	if err != nil {
		return model.Stats{}, fmt.Errorf("increment stats: %w", err)
	}
	if len(res) != 3 {
		return model.Stats{}, fmt.Errorf("increment stats: unexpected reply %v", res)
	}
	return statsFromValues(res[0], res[1], res[2])
}

func (s *RedisStore) ResetStatsIfStale(ctx context.Context, now time.Time, maxAge time.Duration) (model.Stats, bool, error) {
	res, err := resetIfStaleScript.Run(ctx, s.rdb, []string{KeyStats},
		now.UnixMilli(), maxAge.Milliseconds()).Slice()
	if err != nil {
		return model.Stats{}, false, fmt.Errorf("reset stats: %w", err)
	}
	if len(res) != 4 {
		return model.Stats{}, false, fmt.Errorf("reset stats: unexpected reply %v", res)
	}
	reset, err := toInt64(res[0])
	if err != nil {
		return model.Stats{}, false, err
	}
	stats, err := statsFromValues(res[1], res[2], res[3])
	if err != nil {
		return model.Stats{}, false, err
	}
	return stats, reset == 1, nil
}

func (s *RedisStore) GetBackendURL(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, KeyBackendURL).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get backend url: %w", err)
	}
	return v, nil
}

// SetBackendURL 空串表示清除，回落到默认地址
func (s *RedisStore) SetBackendURL(ctx context.Context, url string) error {
	var err error
	if url == "" {
		err = s.rdb.Del(ctx, KeyBackendURL).Err()
	} else {
		err = s.rdb.Set(ctx, KeyBackendURL, url, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("set backend url: %w", err)
	}
	return nil
}

func statsFromValues(processed, categorized, lastReset any) (model.Stats, error) {
	p, err := toInt64(processed)
	if err != nil {
		return model.Stats{}, fmt.Errorf("parse processed: %w", err)
	}
	c, err := toInt64(categorized)
	if err != nil {
		return model.Stats{}, fmt.Errorf("parse categorized: %w", err)
	}
	lr, err := toInt64(lastReset)
	if err != nil {
		return model.Stats{}, fmt.Errorf("parse last_reset: %w", err)
	}
	stats := model.Stats{Processed: p, Categorized: c}
	if lr > 0 {
		stats.LastReset = time.UnixMilli(lr).UTC()
	}
	return stats, nil
}

// toInt64 Lua 回复里的数字可能是 integer 也可能是字符串
func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis value %T", v)
	}
}
