package ledger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"
	"fractalscan/ports"

	"github.com/redis/go-redis/v9"
)

const scanIndexKey = "scans:index"

// redisClient is the subset of *redis.Client the ledger uses
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisLedger stores each record as a JSON string with a TTL and keeps a
// sorted set of IDs scored by creation time for listing.
type RedisLedger struct {
	client redisClient
	ttl    time.Duration
}

var _ ports.ScanLedger = (*RedisLedger)(nil)

// OpenRedis parses the URL, connects and pings
func OpenRedis(ctx context.Context, redisURL string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("invalid REDIS_URL: %v", err))
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}

	return newRedisLedger(client, ttl), nil
}

func newRedisLedger(client redisClient, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func scanKey(id string) string {
	return fmt.Sprintf("scan:%s", id)
}

// Append stores the record and indexes it
func (l *RedisLedger) Append(ctx context.Context, record *fractal.Record) error {
	if record == nil || record.ID.String() == "" {
		return errors.ValidationError("record must have an ID")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal scan record")
	}

	id := record.ID.String()
	if err := l.client.Set(ctx, scanKey(id), payload, l.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to store scan %s", id)
	}
	if err := l.client.ZAdd(ctx, scanIndexKey, redis.Z{Score: float64(record.CreatedAt), Member: id}).Err(); err != nil {
		return errors.Wrapf(err, "failed to index scan %s", id)
	}
	if l.ttl > 0 {
		// the index lives as long as its newest member
		if err := l.client.Expire(ctx, scanIndexKey, l.ttl).Err(); err != nil {
			return errors.Wrap(err, "failed to refresh index TTL")
		}
	}
	return nil
}

// Get loads one record
func (l *RedisLedger) Get(ctx context.Context, id core.ScanID) (*fractal.Record, error) {
	data, err := l.client.Get(ctx, scanKey(id.String())).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound("scan " + id.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load scan %s", id)
	}

	var rec fractal.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "corrupt payload for scan %s", id)
	}
	return &rec, nil
}

// List returns the newest records first, pruning index entries whose record expired
func (l *RedisLedger) List(ctx context.Context, limit int) ([]*fractal.Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	ids, err := l.client.ZRevRange(ctx, scanIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scan index")
	}
	if len(ids) == 0 {
		return []*fractal.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = scanKey(id)
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load scans")
	}

	out := make([]*fractal.Record, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var rec fractal.Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, errors.Wrapf(err, "corrupt payload for scan %s", ids[i])
		}
		out = append(out, &rec)
	}

	if len(expired) > 0 {
		// best effort; a failed prune is retried on the next listing
		_ = l.client.ZRem(ctx, scanIndexKey, expired...).Err()
	}
	return out, nil
}

func (l *RedisLedger) Driver() string { return "redis" }

func (l *RedisLedger) Ping(ctx context.Context) error { return l.client.Ping(ctx).Err() }

func (l *RedisLedger) Close() error { return l.client.Close() }
