package token

import (
	"context"
	"fmt"
	"time"
)

// Store is the narrow key/value contract the token service needs from its
// backing store: set a blob with a TTL, fetch it back, delete it early on
// revocation. Nothing in this package needs existence checks, bulk clears,
// or stats, so the interface carries only what a download-token grant
// actually exercises.
type Store interface {
	// Get retrieves a value from the store. Returns ErrNotFound if the key
	// doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL. TTL of 0 uses the store's
	// configured DefaultTTL; if that is also 0 the value does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store.
	Delete(ctx context.Context, key string) error

	// Close releases the store's underlying connection, if any.
	Close() error
}

// ErrNotFound is returned when a key is not present in the store.
var ErrNotFound = fmt.Errorf("token: store key not found")

// StoreConfig configures a Store backed by a Redis-compatible server.
type StoreConfig struct {
	// Address is the DragonflyDB/Redis server address (host:port).
	Address string
	// Password for authentication (optional).
	Password string
	// Database number to use (default: 0).
	Database int
	// PoolSize is the maximum number of connections.
	PoolSize int
	// Prefix is prepended to every key, namespacing the token keyspace
	// from anything else sharing the same DragonflyDB instance.
	Prefix string
	// DefaultTTL is used for Set calls that pass ttl == 0.
	DefaultTTL time.Duration
}
