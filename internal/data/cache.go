package data

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// cacheGenerationKey versions every cached entry. Bumping it orphans entries
// written by reads that started before the bump; they expire with their TTL.
const cacheGenerationKey = "mart:generation"

func versionedKey(key string, gen int64) string {
	return key + ":" + strconv.FormatInt(gen, 10)
}

// generation returns the current cache generation. A missing key is generation 0.
func generation(ctx context.Context, rdb *redis.Client) (int64, error) {
	gen, err := rdb.Get(ctx, cacheGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// cached serves key from Redis when available and fills it from load on a miss.
// The generation is read before load so a concurrent invalidate wins.
// Cache failures never fail the read.
func cached[T any](ctx context.Context, d *Data, key string, load func() (T, error)) (T, error) {
	rdb := d.rdb
	var vkey string
	if rdb != nil {
		gen, err := generation(ctx, rdb)
		if err != nil {
			d.log.WithContext(ctx).Warnf("failed to read cache generation: %v", err)
			rdb = nil
		} else {
			vkey = versionedKey(key, gen)
		}
	}

	if rdb != nil {
		raw, err := rdb.Get(ctx, vkey).Result()
		if err == nil {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err == nil {
				d.log.WithContext(ctx).Debugf("cache hit: %s", vkey)
				return v, nil
			}
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if rdb != nil {
		if payload, err := json.Marshal(v); err == nil {
			if err := rdb.Set(ctx, vkey, payload, d.cacheTTL).Err(); err != nil {
				d.log.WithContext(ctx).Warnf("failed to cache %s: %v", vkey, err)
			}
		}
	}
	return v, nil
}

// invalidate bumps the cache generation so every cached entry is bypassed.
func invalidate(ctx context.Context, d *Data) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.Incr(ctx, cacheGenerationKey).Err(); err != nil {
		d.log.WithContext(ctx).Warnf("failed to invalidate cache: %v", err)
	}
}
