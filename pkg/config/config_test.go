package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"comicframe/pkg/database"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
xkcd:
  base_url: "http://localhost:9000"
  request_timeout: 5s

selection:
  max_attempts: 4
  rejection_pause: 250ms

display:
  width: 640
  height: 384
  padding: 8
  show_title: false

render:
  transformer: ffmpeg
  ffmpeg_path: /usr/bin/ffmpeg

database:
  path: "/tmp/comicframe-test.db"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.XKCD.BaseURL != "http://localhost:9000" {
		t.Errorf("Expected base_url 'http://localhost:9000', got '%s'", cfg.XKCD.BaseURL)
	}
	if cfg.XKCD.RequestTimeout != 5*time.Second {
		t.Errorf("Expected request_timeout 5s, got %v", cfg.XKCD.RequestTimeout)
	}
	if cfg.Selection.MaxAttempts != 4 {
		t.Errorf("Expected max_attempts 4, got %d", cfg.Selection.MaxAttempts)
	}
	if cfg.Selection.RejectionPause != 250*time.Millisecond {
		t.Errorf("Expected rejection_pause 250ms, got %v", cfg.Selection.RejectionPause)
	}
	if cfg.Display.Width != 640 || cfg.Display.Height != 384 {
		t.Errorf("Expected 640x384, got %dx%d", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Display.ShowTitle {
		t.Error("Expected show_title false")
	}
	if cfg.Render.Transformer != "ffmpeg" {
		t.Errorf("Expected transformer ffmpeg, got %s", cfg.Render.Transformer)
	}

	// untouched keys keep their defaults
	if cfg.XKCD.FallbackLatestID != 3000 {
		t.Errorf("Expected fallback_latest_id 3000, got %d", cfg.XKCD.FallbackLatestID)
	}
	if cfg.Display.FontSize != 20 {
		t.Errorf("Expected font_size 20, got %d", cfg.Display.FontSize)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(database.EnvPath, "/tmp/override.db")
	t.Setenv("COMICFRAME_XKCD_BASE_URL", "http://mirror.local")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Expected env override for database path, got %s", cfg.Database.Path)
	}
	if cfg.XKCD.BaseURL != "http://mirror.local" {
		t.Errorf("Expected env override for base url, got %s", cfg.XKCD.BaseURL)
	}
	if cfg.Display.Width != 800 || cfg.Display.Height != 480 {
		t.Errorf("Expected default 800x480, got %dx%d", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Selection.MaxAttempts != 10 {
		t.Errorf("Expected default max_attempts 10, got %d", cfg.Selection.MaxAttempts)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}, wantErr: false},
		{name: "missing base_url", mutate: func(c *Config) { c.XKCD.BaseURL = "" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Selection.MaxAttempts = 0 }, wantErr: true},
		{name: "padding eats the canvas", mutate: func(c *Config) { c.Display.Padding = 240 }, wantErr: true},
		{name: "unknown transformer", mutate: func(c *Config) { c.Render.Transformer = "gimp" }, wantErr: true},
		{name: "negative pause", mutate: func(c *Config) { c.Selection.RejectionPause = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("display:\n  padding: 10\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	reloaded := make(chan *Config, 4)
	w, err := Watch(configFile, func(c *Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(configFile, []byte("display:\n  padding: 16\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Display.Padding != 16 {
			t.Errorf("Expected padding 16 after reload, got %d", cfg.Display.Padding)
		}
	case <-time.After(3 * time.Second):
		t.Error("Timeout waiting for config reload")
	}
}

func TestDefaultDatabaseFollowsDatabasePackage(t *testing.T) {
	t.Setenv(database.EnvPath, "/srv/frames/history.db")

	cfg := Default()
	want := database.DefaultConfig()
	if got := cfg.Database.Options(); got != want {
		t.Errorf("Database.Options() = %+v, want %+v", got, want)
	}
}
