// Package cache stores built snapshots keyed by the content that produced them.
//
// A layout of a large tree takes seconds to minutes; the snapshot it produces
// is a self-contained byte blob (see pkg/snapshot), so any byte store can hold
// it. Three backends are provided:
//
//   - [FileCache]: one file per entry under a directory (CLI default)
//   - [BoltCache]: a single bbolt database file
//   - [RedisCache]: a shared Redis instance for multi-instance servers
//
// [NullCache] disables caching. [Instrument] wraps any backend so hits,
// misses and writes reach the registered observability hooks.
//
// Keys come from a [Keyer]. The default keyer hashes the input text together
// with every option that changes the output, so editing either misses.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long snapshot entries live when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte store with expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero or less stores the entry without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pruner is a backend that can drop its expired entries in bulk. Redis
// expires entries itself.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Keyer derives cache keys.
type Keyer interface {
	// SnapshotKey identifies a built snapshot.
	SnapshotKey(inputHash string, opts SnapshotKeyOpts) string
	// ResultKey identifies a gzip JSON result payload.
	ResultKey(inputHash string, opts SnapshotKeyOpts) string
}

// SnapshotKeyOpts are the build options that change snapshot contents.
type SnapshotKeyOpts struct {
	LeafStep      float64 `json:"leaf_step"`
	XScale        float64 `json:"x_scale"`
	MinStemGap    float64 `json:"min_stem_gap"`
	ParentStub    float64 `json:"parent_stub"`
	WeightedStub  float64 `json:"weighted_stub"`
	BranchLengths bool    `json:"branch_lengths"`
	Polar         bool    `json:"polar"`
	Strict        bool    `json:"strict"`
	Limit         int     `json:"limit"`
}

// DefaultKeyer produces "snapshot:<sha256>" and "result:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SnapshotKey implements Keyer.
func (DefaultKeyer) SnapshotKey(inputHash string, opts SnapshotKeyOpts) string {
	return hashKey("snapshot", inputHash, opts)
}

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(inputHash string, opts SnapshotKeyOpts) string {
	return hashKey("result", inputHash, opts)
}
