package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
)

const (
	statusKeyPrefix = "run:status:"
	logsKeyPrefix   = "run:logs:"
)

// RedisStore keeps run records as JSON strings and logs as lists, both
// expiring after the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a store backed by client. A non-positive ttl means
// DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Save(ctx context.Context, rec v1.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := s.client.Set(ctx, statusKeyPrefix+rec.RunID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, runID string) (v1.RunRecord, error) {
	var rec v1.RunRecord
	data, err := s.client.Get(ctx, statusKeyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return rec, nil
}

func (s *RedisStore) AppendLog(ctx context.Context, runID, line string) error {
	key := logsKeyPrefix + runID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, line)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log for run %s: %w", runID, err)
	}
	return nil
}

func (s *RedisStore) Logs(ctx context.Context, runID string) ([]string, error) {
	lines, err := s.client.LRange(ctx, logsKeyPrefix+runID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load logs for run %s: %w", runID, err)
	}
	return lines, nil
}
