package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// RedisConfig holds configuration for a Redis-backed store.
type RedisConfig struct {
	// Redis is the client used for all operations. The store does not
	// close it.
	Redis redis.UniversalClient

	// Prefix namespaces the store's keys.
	// Default: "voicepipe:history"
	Prefix string

	// TTL expires the whole history when no run finishes for this long.
	// Count-based retention is Prune's job.
	// Default: 720h
	TTL time.Duration

	// RedisTimeout bounds each Redis operation.
	// Default: 500ms
	RedisTimeout time.Duration
}

// DefaultRedisConfig returns the default Redis store configuration. The
// client must still be supplied.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:       "voicepipe:history",
		TTL:          720 * time.Hour,
		RedisTimeout: 500 * time.Millisecond,
	}
}

// RedisStore keeps records in a Redis hash with a sorted-set index over
// completion time.
type RedisStore struct {
	config RedisConfig
	keys   map[string]string
}

// storeKeys generates the Redis keys used by a store instance.
func storeKeys(prefix string) map[string]string {
	return map[string]string{
		"records": prefix + ":records",
		"index":   prefix + ":index",
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Redis == nil {
		return nil, vperrors.NewValidationError("history", "Redis", nil, "redis client is required")
	}

	def := DefaultRedisConfig()
	if config.Prefix == "" {
		config.Prefix = def.Prefix
	}
	if config.TTL == 0 {
		config.TTL = def.TTL
	}
	if config.TTL < 0 {
		return nil, vperrors.NewValidationError("history", "TTL", config.TTL, "duration must not be negative")
	}
	if config.RedisTimeout == 0 {
		config.RedisTimeout = def.RedisTimeout
	}
	if config.RedisTimeout < 0 {
		return nil, vperrors.NewValidationError("history", "RedisTimeout", config.RedisTimeout, "duration must not be negative")
	}

	return &RedisStore{
		config: config,
		keys:   storeKeys(config.Prefix),
	}, nil
}

// Save implements the Store interface.
func (rs *RedisStore) Save(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return vperrors.NewOperationError("history", "encode", err)
	}

	ctx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	pipe := rs.config.Redis.Pipeline()
	pipe.HSet(ctx, rs.keys["records"], rec.RunID, b)
	pipe.ZAdd(ctx, rs.keys["index"], redis.Z{
		Score:  float64(rec.EndTime.UnixNano()),
		Member: rec.RunID,
	})
	if rs.config.TTL > 0 {
		pipe.Expire(ctx, rs.keys["records"], rs.config.TTL)
		pipe.Expire(ctx, rs.keys["index"], rs.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"save", err}
	}
	return nil
}

// Get implements the Store interface.
func (rs *RedisStore) Get(ctx context.Context, runID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	val, err := rs.config.Redis.HGet(ctx, rs.keys["records"], runID).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, &RedisError{"get", err}
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, vperrors.NewOperationError("history", "decode", err)
	}
	return rec, nil
}

// Recent implements the Store interface.
func (rs *RedisStore) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	ids, err := rs.config.Redis.ZRevRange(ctx, rs.keys["index"], 0, int64(n-1)).Result()
	if err != nil {
		return nil, &RedisError{"recent", err}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := rs.config.Redis.HMGet(ctx, rs.keys["records"], ids...).Result()
	if err != nil {
		return nil, &RedisError{"recent", err}
	}

	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // index entry without a record
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, vperrors.NewOperationError("history", "decode", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete implements the Store interface.
func (rs *RedisStore) Delete(ctx context.Context, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	pipe := rs.config.Redis.Pipeline()
	pipe.HDel(ctx, rs.keys["records"], runID)
	pipe.ZRem(ctx, rs.keys["index"], runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"delete", err}
	}
	return nil
}

// Prune implements the Store interface.
func (rs *RedisStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	ctx, cancel := context.WithTimeout(ctx, rs.config.RedisTimeout)
	defer cancel()

	card, err := rs.config.Redis.ZCard(ctx, rs.keys["index"]).Result()
	if err != nil {
		return 0, &RedisError{"prune", err}
	}
	excess := card - int64(keep)
	if excess <= 0 {
		return 0, nil
	}

	ids, err := rs.config.Redis.ZRange(ctx, rs.keys["index"], 0, excess-1).Result()
	if err != nil {
		return 0, &RedisError{"prune", err}
	}

	pipe := rs.config.Redis.Pipeline()
	if len(ids) > 0 {
		pipe.HDel(ctx, rs.keys["records"], ids...)
	}
	pipe.ZRemRangeByRank(ctx, rs.keys["index"], 0, excess-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, &RedisError{"prune", err}
	}
	return len(ids), nil
}

// Close implements the Store interface. The Redis client is owned by the
// caller and stays open.
func (rs *RedisStore) Close() error {
	return nil
}

// RedisError represents a failed Redis operation.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "history redis " + e.Operation + " failed: " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}
