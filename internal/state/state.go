// Package state holds the small amount of persisted state subfeed needs:
// the access credential and the subscription snapshot.
//
// Every backend implements Store, a key/value lifecycle (Init, Read, Write,
// Clear, Close). Callers own the Store and pass it to each component; there
// is no package-level instance.
package state

import (
	"context"
	"errors"
	"fmt"
)

// Keys used by subfeed components. They are stored independently so that
// clearing one never touches the other.
const (
	KeyCredential    = "credential"
	KeySubscriptions = "subscriptions"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

var ErrNotFound = errors.New("state: key not found")

// Store is a persisted key/value state object.
type Store interface {
	// Init prepares the backend (directories, schema, connectivity).
	Init(ctx context.Context) error
	// Read returns the raw value for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the value for key.
	Write(ctx context.Context, key string, value []byte) error
	// Clear removes key. Clearing a missing key is not an error.
	Clear(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Dir        string
	SQLitePath string
	RedisURL   string
	RedisKey   string
}

// Open builds the backend named in opts and initializes it.
func Open(ctx context.Context, opts Options) (Store, error) {
	var s Store
	switch opts.Backend {
	case "", BackendFile:
		s = NewFileStore(opts.Dir)
	case BackendSQLite:
		s = NewSQLiteStore(opts.SQLitePath)
	case BackendRedis:
		rs, err := NewRedisStoreFromURL(opts.RedisURL, opts.RedisKey)
		if err != nil {
			return nil, err
		}
		s = rs
	case BackendMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown state backend %q: must be file, sqlite, redis or memory", opts.Backend)
	}

	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize %s state: %w", backendName(opts.Backend), err)
	}
	return s, nil
}

func backendName(b string) string {
	if b == "" {
		return BackendFile
	}
	return b
}
