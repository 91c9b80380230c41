package cache

import (
	"context"
	"time"
)

// Cache defines the cache operations used by the grader.
// Implementations other than Redis can be swapped in without touching callers.
type Cache interface {
	BasicOps
	CounterOps
	HashOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key, "" when absent
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Exists returns the number of the given keys that exist
	Exists(ctx context.Context, keys ...string) (int64, error)
}

// CounterOps defines the expiring counter operations used for rate limiting
type CounterOps interface {
	// SetNX sets the value only if the key does not exist (atomic operation)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Incr increments the integer value of key by one
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a timeout on key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining time to live of a key
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// HashOps defines hash (map) operations
type HashOps interface {
	// HSet sets field in the hash stored at key to value
	HSet(ctx context.Context, key, field string, value interface{}) error

	// HGet returns the value associated with field, "" when absent
	HGet(ctx context.Context, key, field string) (string, error)

	// HGetAll returns all fields and values of the hash stored at key
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// ReplaceHash atomically swaps the whole hash content for fields
	ReplaceHash(ctx context.Context, key string, fields map[string]interface{}) error
}
