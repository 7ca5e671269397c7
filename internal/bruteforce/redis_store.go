package bruteforce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	attemptsPrefix = "bruteforce:attempts:"
	lockPrefix     = "bruteforce:lock:"
)

// RedisStore keeps attempts in a sorted set per IP. Members are
// "<outcome>:<uuid>" where outcome is 1 for success and 0 for failure.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, ip string, attempt Attempt, window time.Duration) error {
	outcome := "0"
	if attempt.Success {
		outcome = "1"
	}

	key := attemptsPrefix + ip
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(attempt.At.UnixMilli()), Member: outcome + ":" + uuid.NewString()})
	pipe.PExpire(ctx, key, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append login attempt: %w", err)
	}
	return nil
}

func (s *RedisStore) Failures(ctx context.Context, ip string, since time.Time) (int, error) {
	key := attemptsPrefix + ip

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(since.UnixMilli(), 10))
	members := pipe.ZRange(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count login failures: %w", err)
	}

	failures := 0
	for _, member := range members.Val() {
		if strings.HasPrefix(member, "0:") {
			failures++
		}
	}
	return failures, nil
}

func (s *RedisStore) Lock(ctx context.Context, ip string, until time.Time) error {
	ttl := time.Until(until)
	if ttl < time.Second {
		ttl = time.Second
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, lockPrefix+ip, strconv.FormatInt(until.UnixMilli(), 10), ttl)
	pipe.Del(ctx, attemptsPrefix+ip)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lock ip: %w", err)
	}
	return nil
}

func (s *RedisStore) LockedUntil(ctx context.Context, ip string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, lockPrefix+ip).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read ip lock: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse ip lock: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisStore) Prune(context.Context, time.Time, time.Duration) error {
	return nil
}
