package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache is a read-through cache for GET responses keyed by their
// query parameters. Entries expire by TTL only; writes to the
// underlying collection may serve a stale page for at most the TTL.
type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQueryCache creates a QueryCache with the given TTL.
func NewQueryCache(client *redis.Client, ttl time.Duration) *QueryCache {
	return &QueryCache{client: client, ttl: ttl}
}

// Key derives a stable cache key from a prefix and the request's query
// parameters, independent of parameter order.
func (q *QueryCache) Key(prefix string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(":")
		}
		builder.WriteString(k)
		builder.WriteString("=")
		builder.WriteString(strings.Join(values[k], ","))
	}

	hash := md5.Sum([]byte(builder.String()))
	return prefix + ":" + hex.EncodeToString(hash[:])
}

// Get unmarshals a cached value into dest. It returns false on a miss,
// and also on Redis errors: a broken cache degrades to uncached, never
// fails the request.
func (q *QueryCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if q == nil || q.client == nil {
		return false
	}
	data, err := q.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(data), dest) == nil
}

// Set stores a value under key with the cache's TTL. Errors are
// swallowed for the same reason as in Get.
func (q *QueryCache) Set(ctx context.Context, key string, value interface{}) {
	if q == nil || q.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = q.client.Set(ctx, key, data, q.ttl).Err()
}
