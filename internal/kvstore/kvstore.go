// Package kvstore provides the key-value backends the board document is
// persisted to.
package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/madhatter5501/noteboard/internal/db"
	"github.com/madhatter5501/noteboard/kanban"
)

// Store is a kanban.KVStore that holds resources until closed.
type Store interface {
	kanban.KVStore
	// Location describes where values live: a directory, a database
	// file or a server address.
	Location() string
	Close() error
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Backends lists the supported backend names.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendRedis, BackendBadger}

// Config selects and configures a backend.
type Config struct {
	Backend string `json:"backend"`

	// Dir is the data directory for the file, sqlite and badger backends.
	Dir string `json:"dir"`

	// SQLitePath overrides the database file. Defaults to Dir/noteboard.db.
	SQLitePath string `json:"sqlitePath,omitempty"`

	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDB,omitempty"`
	RedisPrefix   string `json:"redisPrefix,omitempty"`

	// BadgerInMemory keeps the badger store in memory only.
	BadgerInMemory bool `json:"badgerInMemory,omitempty"`
}

// DefaultConfig returns a file store under .noteboard.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendFile,
		Dir:       ".noteboard",
		RedisAddr: "localhost:6379",
	}
}

// Open opens the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemory(), nil

	case BackendFile, "":
		return NewFile(filepath.Join(cfg.Dir, "data"))

	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Dir, "noteboard.db")
		}
		database, err := db.Open(path)
		if err != nil {
			return nil, err
		}
		return db.NewStore(database), nil

	case BackendRedis:
		return DialRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})

	case BackendBadger:
		bcfg := DefaultBadgerConfig()
		if cfg.BadgerInMemory {
			bcfg = InMemoryBadgerConfig()
		}
		bcfg.Path = filepath.Join(cfg.Dir, "badger")
		bcfg.Logger = logger
		return OpenBadger(bcfg)
	}

	return nil, fmt.Errorf("unknown store backend %q (want one of %s)", cfg.Backend, strings.Join(Backends, ", "))
}
