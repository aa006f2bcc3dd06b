// Package store is the key/value substrate the ledger persists into.
//
// Backends only need point reads and an atomic batch write: every ledger
// operation stages its writes and hands them to Apply in one call.
package store

import (
	"context"
	"fmt"
)

// Entry is one write in a batch. A nil Value deletes Key.
type Entry struct {
	Key   string
	Value []byte
}

// Store is implemented by every backend.
type Store interface {
	// Get returns ok == false when key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Apply writes all entries or none of them.
	Apply(ctx context.Context, entries []Entry) error
	Close() error
}

// Compile-time interface checks.
var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
	_ Store = (*Redis)(nil)
	_ Store = (*Postgres)(nil)
)

// Config selects and parameterizes a backend.
type Config struct {
	Type string `json:"type" yaml:"type"` // memory, sqlite, redis or postgres
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Prefix namespaces keys in shared backends (redis, postgres).
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Open builds the backend named by cfg.Type.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err = asStore(NewSQLite(cfg.Path))
	case "redis":
		s, err = asStore(NewRedis(ctx, cfg.Addr, cfg.Prefix))
	case "postgres":
		s, err = asStore(NewPostgres(ctx, cfg.DSN, cfg.Prefix))
	default:
		return nil, fmt.Errorf("unknown store type %q (supported: memory, sqlite, redis, postgres)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// asStore keeps a typed nil from leaking out as a non-nil interface.
func asStore[T Store](s T, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
