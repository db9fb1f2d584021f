package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenAndMigrate(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "history.db")}

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// second run is a no-op
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM render_history`).Scan(&n); err != nil {
		t.Fatalf("query render_history: %v", err)
	}
	if n != 0 {
		t.Errorf("render_history has %d rows, want 0", n)
	}

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %s, want wal", mode)
	}
	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv(EnvPath, "/tmp/frames.db")
		if got := DefaultConfig().Path; got != "/tmp/frames.db" {
			t.Errorf("DefaultConfig().Path = %s, want /tmp/frames.db", got)
		}
	})
	t.Run("home default", func(t *testing.T) {
		t.Setenv(EnvPath, "")
		got := DefaultConfig()
		if filepath.Base(got.Path) != "history.db" || filepath.Base(filepath.Dir(got.Path)) != ".comicframe" {
			t.Errorf("DefaultConfig().Path = %s", got.Path)
		}
		if got.BusyTimeout != DefaultBusyTimeout {
			t.Errorf("BusyTimeout = %v", got.BusyTimeout)
		}
	})
}

func TestDSN(t *testing.T) {
	dsn := Config{Path: "/data/h.db", BusyTimeout: 2 * time.Second}.DSN()
	for _, want := range []string{"/data/h.db?", "_busy_timeout=2000", "_foreign_keys=on", "_journal_mode=WAL"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}
