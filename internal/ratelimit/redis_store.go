package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	windowPrefix = "ratelimit:window:"
	blockPrefix  = "ratelimit:block:"
)

// extendBlock stores the deadline only when it is later than the current
// one, so a short block never cuts a longer one.
var extendBlock = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local until_ms = tonumber(ARGV[1])
	if current ~= nil and current >= until_ms then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
`)

// RedisStore shares windows and blocks across instances. Each window is a
// sorted set scored by hit time in milliseconds; keys expire on their own,
// so Prune has nothing to do.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Check(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	redisKey := windowPrefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	card := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("check rate window: %w", err)
	}
	return int(card.Val()), nil
}

func (s *RedisStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) error {
	redisKey := windowPrefix + key

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.PExpire(ctx, redisKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate hit: %w", err)
	}
	return nil
}

func (s *RedisStore) IsBlocked(ctx context.Context, ip string, now time.Time) (time.Duration, bool, error) {
	raw, err := s.client.Get(ctx, blockPrefix+ip).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read ip block: %w", err)
	}

	untilMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse ip block: %w", err)
	}

	until := time.UnixMilli(untilMs)
	if !until.After(now) {
		return 0, false, nil
	}
	return until.Sub(now), true, nil
}

func (s *RedisStore) Block(ctx context.Context, ip string, until time.Time) error {
	ttl := time.Until(until)
	if ttl < time.Second {
		ttl = time.Second
	}

	err := extendBlock.Run(ctx, s.client, []string{blockPrefix + ip},
		strconv.FormatInt(until.UnixMilli(), 10), strconv.FormatInt(ttl.Milliseconds(), 10)).Err()
	if err != nil {
		return fmt.Errorf("block ip: %w", err)
	}
	return nil
}

func (s *RedisStore) Prune(context.Context, time.Time, time.Duration) error {
	return nil
}
