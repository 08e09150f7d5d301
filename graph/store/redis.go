package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of Store[S].
//
// Each run is a hash keyed by step number holding the JSON-encoded
// StepRecord. A sorted set indexes run IDs by the time of their last step.
//
// Keys (default prefix "reviewloop:"):
//   - <prefix>run:<runID>: hash step -> record
//   - <prefix>runs: sorted set of run IDs
type RedisStore[S any] struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix string
	ttl    time.Duration
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *redisConfig) {
		c.prefix = prefix
	}
}

// WithTTL expires a run's history ttl after its last step. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *redisConfig) {
		c.ttl = ttl
	}
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore[S any](addr, password string, db int, opts ...RedisOption) *RedisStore[S] {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient[S](client, opts...)
}

// NewRedisStoreFromURL parses a redis:// URL, as used in store.dsn.
func NewRedisStoreFromURL[S any](url string, opts ...RedisOption) (*RedisStore[S], error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisStoreFromClient[S](backend.NewClient(options), opts...), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient[S any](client *backend.Client, opts ...RedisOption) *RedisStore[S] {
	cfg := redisConfig{prefix: "reviewloop:"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RedisStore[S]{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
		now:    time.Now,
	}
}

func (r *RedisStore[S]) runKey(runID string) string {
	return r.prefix + "run:" + runID
}

func (r *RedisStore[S]) indexKey() string {
	return r.prefix + "runs"
}

// SaveStep writes the record and refreshes the run index in one pipeline.
func (r *RedisStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	now := r.now()
	data, err := json.Marshal(StepRecord[S]{
		Step:      step,
		NodeID:    nodeID,
		State:     state,
		CreatedAt: now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal step: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.runKey(runID), strconv.Itoa(step), data)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.runKey(runID), r.ttl)
	}
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{
		Score:  float64(now.Unix()),
		Member: runID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save step to redis: %w", err)
	}
	return nil
}

// LoadLatest returns the highest-numbered step of runID.
func (r *RedisStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	records, err := r.LoadSteps(ctx, runID)
	if err != nil {
		var zero S
		return zero, 0, err
	}
	latest := records[len(records)-1]
	return latest.State, latest.Step, nil
}

// LoadSteps returns every step of runID in step order.
func (r *RedisStore[S]) LoadSteps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	fields, err := r.client.HGetAll(ctx, r.runKey(runID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load steps from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	records := make([]StepRecord[S], 0, len(fields))
	for field, raw := range fields {
		var record StepRecord[S]
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step %s: %w", field, err)
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Step < records[j].Step })
	return records, nil
}

// Runs returns run IDs, most recently updated first. Expired runs are pruned
// from the index lazily.
func (r *RedisStore[S]) Runs(ctx context.Context) ([]string, error) {
	if r.ttl > 0 {
		cutoff := float64(r.now().Add(-r.ttl).Unix())
		err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", fmt.Sprintf("(%f", cutoff)).Err()
		if err != nil {
			return nil, fmt.Errorf("failed to prune expired runs: %w", err)
		}
	}

	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return ids, nil
}

// Delete removes a run's history.
func (r *RedisStore[S]) Delete(ctx context.Context, runID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.runKey(runID))
	pipe.ZRem(ctx, r.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Ping verifies the server is reachable.
func (r *RedisStore[S]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (r *RedisStore[S]) Close() error {
	return r.client.Close()
}
