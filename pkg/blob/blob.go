// Package blob is a small key-value store for serialized application state.
package blob

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Store holds opaque values under fixed string keys.
type Store interface {
	// Get returns the value for key. ok is false when the key has never been written.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	io.Closer
}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of "file" (default), "sqlite" or "redis".
	Driver string

	// Dir is the data directory shared by the file and sqlite backends.
	Dir string
	// SQLitePath defaults to <Dir>/zuno.db.
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// RedisPrefix is prepended to every key.
	RedisPrefix string
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Dir, "zuno.db")
		}
		return NewSQLiteStore(ctx, path)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, eris.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}
