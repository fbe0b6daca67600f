// Package kv provides the string key-value persistence the recording store
// is built on. Backends: in-memory, SQLite (the default on-device store),
// BoltDB and Postgres.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a flat string key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or replaces the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// ErrEmptyKey is returned for operations on the empty key.
var ErrEmptyKey = errors.New("kv: empty key")

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the database file for sqlite and bolt.
	Path string
	// Pool is required for postgres.
	Pool *pgxpool.Pool
}

// Open returns the backend named in opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return OpenSQLite(opts.Path)
	case BackendBolt:
		return OpenBolt(opts.Path)
	case BackendPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("kv: postgres backend requires a connection pool")
		}
		return NewPostgresStore(ctx, opts.Pool)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q (supported: memory, sqlite, bolt, postgres)", opts.Backend)
	}
}

func ensureDir(path string) error {
	if path == "" {
		return fmt.Errorf("kv: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("kv: create data dir: %w", err)
	}
	return nil
}
