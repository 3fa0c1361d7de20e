package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("snapshots")

// BoltCache stores entries in a single bbolt database file. It suits a
// long-running local server: one file, atomic writes, concurrent readers.
type BoltCache struct {
	db *bolt.DB
}

// NewBoltCache opens (creating if needed) the database at path. Opening
// waits at most two seconds for another process holding the file lock.
func NewBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// Get retrieves a value. Expired entries read as misses and are removed.
func (c *BoltCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		out     []byte
		expired bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		data, ok := decodeEntry(raw, time.Now())
		if !ok {
			expired = true
			return nil
		}
		// raw is only valid inside the transaction.
		out = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if expired {
		_ = c.Delete(ctx, key)
	}
	return out, out != nil, nil
}

// Set stores a value.
func (c *BoltCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), encodeEntry(data, ttl))
	})
}

// Delete removes a value.
func (c *BoltCache) Delete(ctx context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

// Prune removes expired entries and returns how many were removed.
func (c *BoltCache) Prune(ctx context.Context) (int, error) {
	now := time.Now()
	n := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := decodeEntry(v, now); !ok {
				stale = append(stale, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

// Close closes the database file.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

var _ Cache = (*BoltCache)(nil)
