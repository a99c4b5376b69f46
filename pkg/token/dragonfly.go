package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DragonflyStore implements Store against a DragonflyDB (Redis-compatible)
// server, the same store used in production for the artifact download
// tokens this package mints.
type DragonflyStore struct {
	client *redis.Client
	config StoreConfig
}

// NewDragonflyStore dials addr and confirms it's reachable before returning.
func NewDragonflyStore(cfg StoreConfig) (*DragonflyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("token: failed to connect to DragonflyDB at %s: %w", cfg.Address, err)
	}

	return &DragonflyStore{client: client, config: cfg}, nil
}

func (ds *DragonflyStore) prefixKey(key string) string {
	if ds.config.Prefix == "" {
		return key
	}
	return ds.config.Prefix + ":" + key
}

// Get retrieves a value from DragonflyDB.
func (ds *DragonflyStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := ds.client.Get(ctx, ds.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("token: store get failed: %w", err)
	}
	return result, nil
}

// Set stores a value in DragonflyDB.
func (ds *DragonflyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = ds.config.DefaultTTL
	}
	if err := ds.client.Set(ctx, ds.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("token: store set failed: %w", err)
	}
	return nil
}

// Delete removes a key from DragonflyDB.
func (ds *DragonflyStore) Delete(ctx context.Context, key string) error {
	if err := ds.client.Del(ctx, ds.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("token: store delete failed: %w", err)
	}
	return nil
}

// Close closes the DragonflyDB connection.
func (ds *DragonflyStore) Close() error {
	return ds.client.Close()
}
