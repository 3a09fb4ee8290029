package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore archives reports in redis: one JSON string per run plus a
// sorted set of run ids scored by start time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to the server described by url, e.g.
// "redis://localhost:6379/0". Keys are namespaced with prefix.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if prefix == "" {
		prefix = "dataflow"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) reportKey(runID string) string { return s.prefix + ":run:" + runID }
func (s *RedisStore) indexKey() string              { return s.prefix + ":runs" }

func (s *RedisStore) Save(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.RunID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.reportKey(r.RunID), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(r.Started.UnixNano()), Member: r.RunID})
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, runID string) (Report, error) {
	data, err := s.client.Get(ctx, s.reportKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return r, nil
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]Report, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Report, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
