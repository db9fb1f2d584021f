package database

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// EnvPath overrides the history database location.
const EnvPath = "COMICFRAME_DB_PATH"

const DefaultBusyTimeout = 5 * time.Second

type Config struct {
	Path        string
	BusyTimeout time.Duration // how long a writer waits on a locked database
}

// PathFromEnv reports the EnvPath override, if set.
func PathFromEnv() (string, bool) {
	p := os.Getenv(EnvPath)
	return p, p != ""
}

// DefaultConfig places the history database at ~/.comicframe/history.db
// unless EnvPath says otherwise.
func DefaultConfig() Config {
	cfg := Config{BusyTimeout: DefaultBusyTimeout}
	if p, ok := PathFromEnv(); ok {
		cfg.Path = p
		return cfg
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	cfg.Path = filepath.Join(home, ".comicframe", "history.db")
	return cfg
}

// DSN carries the connection pragmas as go-sqlite3 query parameters so every
// pooled connection gets them, not just the first.
func (c Config) DSN() string {
	busy := c.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", strconv.FormatInt(busy.Milliseconds(), 10))
	return c.Path + "?" + q.Encode()
}

func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("database: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Path, err)
	}
	return db, nil
}

func MustOpen(cfg Config) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	return db
}
