package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions configures distributed wallet locks
type RedisOptions struct {
	Prefix     string        // Key prefix in Redis
	Expiry     time.Duration // Auto-release after this long if the holder dies
	Tries      int           // Acquisition attempts per key
	RetryDelay time.Duration // Delay between attempts
}

// DefaultRedisOptions returns lock options sized for sub-second ledger units
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:     "lock:",
		Expiry:     10 * time.Second,
		Tries:      64,
		RetryDelay: 50 * time.Millisecond,
	}
}

// Redis is a cross-process locker built on redsync
type Redis struct {
	rs   *redsync.Redsync
	opts RedisOptions
}

// NewRedis creates a distributed locker backed by client
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	defaults := DefaultRedisOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = defaults.Expiry
	}
	if opts.Tries < 1 {
		opts.Tries = defaults.Tries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	return &Redis{rs: redsync.New(goredis.NewPool(client)), opts: opts}
}

// Lock acquires a redsync mutex per key in sorted order
func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]*redsync.Mutex, 0, len(keys))
	for _, key := range keys {
		m := r.rs.NewMutex(r.opts.Prefix+key,
			redsync.WithExpiry(r.opts.Expiry),
			redsync.WithTries(r.opts.Tries),
			redsync.WithRetryDelay(r.opts.RetryDelay),
		)
		if err := m.LockContext(ctx); err != nil {
			unlockAll(held)
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		held = append(held, m)
	}
	var once sync.Once
	return func() { once.Do(func() { unlockAll(held) }) }, nil
}

func unlockAll(held []*redsync.Mutex) {
	for i := len(held) - 1; i >= 0; i-- {
		// Release on a fresh context: the unit's context may already be done
		if ok, err := held[i].UnlockContext(context.Background()); err != nil || !ok {
			logrus.WithFields(logrus.Fields{
				"lock":  held[i].Name(),
				"error": err,
			}).Warn("Failed to release wallet lock")
		}
	}
}
