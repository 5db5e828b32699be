package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements redisClient over maps; no expiry is simulated.
type fakeRedis struct {
	values map[string]string
	index  map[string]float64
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values: make(map[string]string),
		index:  make(map[string]float64),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	if expiration > 0 {
		f.ttls[key] = expiration
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := f.values[k]; ok {
			out[i] = v
		}
	}
	return redis.NewSliceResult(out, nil)
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	for _, m := range members {
		f.index[m.Member.(string)] = m.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	ids := make([]string, 0, len(f.index))
	for id := range f.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if f.index[ids[i]] == f.index[ids[j]] {
			return ids[i] > ids[j]
		}
		return f.index[ids[i]] > f.index[ids[j]]
	})
	if start >= int64(len(ids)) {
		return redis.NewStringSliceResult([]string{}, nil)
	}
	end := stop + 1
	if end > int64(len(ids)) {
		end = int64(len(ids))
	}
	return redis.NewStringSliceResult(ids[start:end], nil)
}

func (f *fakeRedis) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	for _, m := range members {
		delete(f.index, m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Close() error { return nil }
