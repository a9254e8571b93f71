package counterstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares counters across processes and survives restarts.
// With a TTL, idle counters expire and read back as 0.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL refreshes ttl on every increment. ttl <= 0 disables expiry.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(name string) string { return "counter:" + s.ns + ":" + name }

// IncrementAndGet uses INCR. With a TTL, INCR + EXPIRE are pipelined in one
// round-trip and the INCR result is read from the pipeline.
func (s *Redis) IncrementAndGet(ctx context.Context, name string) (int64, error) {
	k := s.key(name)
	if s.ttl <= 0 {
		return s.rdb.Incr(ctx, k).Result()
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *Redis) Get(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.Get(ctx, s.key(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis counter %s: %w", name, err)
	}
	return n, nil
}

func (s *Redis) GetMany(ctx context.Context, names []string) (map[string]int64, error) {
	if len(names) == 0 {
		return map[string]int64{}, nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.key(name)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(names))
	for i, v := range vals {
		var str string
		switch vv := v.(type) {
		case nil:
			out[names[i]] = 0
			continue
		case string:
			str = vv
		case []byte:
			str = string(vv)
		default:
			str = fmt.Sprint(vv)
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis counter parse at %s: %w", names[i], err)
		}
		out[names[i]] = n
	}
	return out, nil
}

// Cleanup is not applicable (Redis expires keys itself when a TTL is set).
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *Redis) Close(context.Context) error { return s.rdb.Close() }
