package cache

import (
	"context"
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendBolt  = "bolt"
	BackendRedis = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir holds file entries, or the bolt database file "cache.db".
	Dir   string
	Redis RedisConfig
}

// Open builds the configured backend wrapped with Instrument. An empty
// Backend means BackendFile.
func Open(ctx context.Context, opts Options) (Cache, error) {
	var (
		c   Cache
		err error
	)
	switch opts.Backend {
	case BackendNone:
		return NewNullCache(), nil
	case "", BackendFile:
		opts.Backend = BackendFile
		c, err = NewFileCache(opts.Dir)
	case BackendBolt:
		c, err = NewBoltCache(filepath.Join(opts.Dir, "cache.db"))
	case BackendRedis:
		c, err = NewRedisCache(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(c, opts.Backend), nil
}
