package search

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pkgredis "github.com/mkrogh/bookmarket-backend/pkg/redis"
)

// scoredMember is one sorted-set entry.
type scoredMember struct {
	Member string
	Score  float64
}

// store is the command surface the search projection needs from Redis.
// Keeping it narrow lets the package tests run against an in-memory fake.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGet(ctx context.Context, key, field string) (string, bool, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZAddNX(ctx context.Context, key string, score float64, member string) error
	ZIncrBy(ctx context.Context, key string, incr float64, member string) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]scoredMember, error)

	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IncrEx(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type redisStore struct {
	rdb *goredis.Client
}

// newStore adapts the shared Redis client to the search command surface.
func newStore(client *pkgredis.Client) (store, error) {
	if client == nil || client.Raw() == nil {
		return nil, errors.New("redis client required")
	}
	return &redisStore{rdb: client.Raw()}, nil
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	flat := make([]any, 0, len(fields)*2)
	for field, value := range fields {
		flat = append(flat, field, value)
	}
	return s.rdb.HSet(ctx, key, flat...).Err()
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *redisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	value, err := s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.SAdd(ctx, key, anySlice(members)...).Err()
}

func (s *redisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.SRem(ctx, key, anySlice(members)...).Err()
}

func (s *redisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

func (s *redisStore) SInter(ctx context.Context, keys ...string) ([]string, error) {
	return s.rdb.SInter(ctx, keys...).Result()
}

func (s *redisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.rdb.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (s *redisStore) ZAddNX(ctx context.Context, key string, score float64, member string) error {
	return s.rdb.ZAddNX(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (s *redisStore) ZIncrBy(ctx context.Context, key string, incr float64, member string) error {
	return s.rdb.ZIncrBy(ctx, key, incr, member).Err()
}

func (s *redisStore) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.ZRem(ctx, key, anySlice(members)...).Err()
}

func (s *redisStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := s.rdb.ZScore(ctx, key, member).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *redisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

func (s *redisStore) ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]scoredMember, error) {
	var rows []goredis.Z
	var err error
	if rev {
		rows, err = s.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	} else {
		rows, err = s.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	}
	if err != nil {
		return nil, err
	}
	members := make([]scoredMember, 0, len(rows))
	for _, row := range rows {
		member, _ := row.Member.(string)
		members = append(members, scoredMember{Member: member, Score: row.Score})
	}
	return members, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// IncrEx increments a counter and applies the TTL on first increment.
func (s *redisStore) IncrEx(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func anySlice(members []string) []any {
	out := make([]any, len(members))
	for i, member := range members {
		out[i] = member
	}
	return out
}
