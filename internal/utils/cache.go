package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error matching
	"strconv"       // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// CacheTTL is how long wallet reads stay cached
const CacheTTL = 60 * time.Second

// InvalidationDelay is how long after a write the second invalidation runs.
// It must exceed the time a read takes from loading the store to setting the cache.
const InvalidationDelay = 500 * time.Millisecond

// WalletCacheKey is the cache key for the wallet owned by userID
func WalletCacheKey(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10)
}

// HistoryCacheKey is the cache key for one page of userID's transaction history
func HistoryCacheKey(userID uint, page, size int) string {
	return historyCachePrefix(userID) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(size)
}

func historyCachePrefix(userID uint) string {
	return "txhistory:user:" + strconv.FormatUint(uint64(userID), 10)
}

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb redis.UniversalClient, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil // Caching disabled
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb redis.UniversalClient, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb redis.UniversalClient, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil // Nothing to delete
	}
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// InvalidateUsers drops the cached wallet and every cached history page of each user
func InvalidateUsers(ctx context.Context, rdb redis.UniversalClient, userIDs ...uint) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	var keys []string // Keys to delete
	for _, id := range userIDs {
		keys = append(keys, WalletCacheKey(id)) // Wallet entry
		// Collect every history page for this user
		iter := rdb.Scan(ctx, 0, historyCachePrefix(id)+":*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err // Scan failed
		}
	}
	return DeleteCache(ctx, rdb, keys...)
}

// InvalidateUsersAfter repeats InvalidateUsers once delay has passed, dropping
// any entry a read re-cached from the pre-commit state in the meantime
func InvalidateUsersAfter(rdb redis.UniversalClient, delay time.Duration, userIDs ...uint) *time.Timer {
	if rdb == nil {
		return nil // Caching disabled
	}
	ids := append([]uint(nil), userIDs...) // Caller may reuse its slice
	return time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) // Bound the background cleanup
		defer cancel()
		if err := InvalidateUsers(ctx, rdb, ids...); err != nil {
			logrus.WithFields(logrus.Fields{
				"users": ids,         // Affected users
				"error": err.Error(), // Error message
			}).Warn("Delayed cache invalidation failed")
		}
	})
}
