package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"comicframe/pkg/database"
)

// Config represents the application configuration
type Config struct {
	XKCD      XKCDConfig      `yaml:"xkcd"`
	Selection SelectionConfig `yaml:"selection"`
	Display   DisplayConfig   `yaml:"display"`
	Render    RenderConfig    `yaml:"render"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
}

type XKCDConfig struct {
	BaseURL          string        `yaml:"base_url"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	FallbackLatestID int           `yaml:"fallback_latest_id"`
}

type SelectionConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	RejectionPause time.Duration `yaml:"rejection_pause"`
	ScratchDir     string        `yaml:"scratch_dir"`
}

type DisplayConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Padding     int    `yaml:"padding"`
	Background  string `yaml:"background"`
	ShowTitle   bool   `yaml:"show_title"`
	FontSize    int    `yaml:"font_size"`
	TitleOffset int    `yaml:"title_offset"`
}

type RenderConfig struct {
	Transformer string `yaml:"transformer"` // "imaging" or "ffmpeg"
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FontFile    string `yaml:"font_file"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	TCPAddr         string        `yaml:"tcp_addr"`
	UDPAddr         string        `yaml:"udp_addr"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// Options converts the section to the form database.Open takes.
func (d DatabaseConfig) Options() database.Config {
	return database.Config{Path: d.Path, BusyTimeout: d.BusyTimeout}
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTIssuer         string        `yaml:"jwt_issuer"`
	JWTDuration       time.Duration `yaml:"jwt_duration"`
	AdminUser         string        `yaml:"admin_user"`
	AdminPasswordHash string        `yaml:"admin_password_hash"` // bcrypt
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	dbDefaults := database.DefaultConfig()
	return &Config{
		XKCD: XKCDConfig{
			BaseURL:          "https://xkcd.com",
			RequestTimeout:   10 * time.Second,
			FallbackLatestID: 3000,
		},
		Selection: SelectionConfig{
			MaxAttempts:    10,
			RejectionPause: time.Second,
		},
		Display: DisplayConfig{
			Width:       800,
			Height:      480,
			Padding:     10,
			Background:  "white",
			ShowTitle:   true,
			FontSize:    20,
			TitleOffset: 20,
		},
		Render: RenderConfig{
			Transformer: "imaging",
			FFmpegPath:  "ffmpeg",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			TCPAddr:         ":7070",
			UDPAddr:         ":7071",
			RefreshInterval: time.Hour,
		},
		Database: DatabaseConfig{
			Path:        dbDefaults.Path,
			BusyTimeout: dbDefaults.BusyTimeout,
		},
		Auth: AuthConfig{
			// dev default (change for production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "comicframe",
			JWTDuration: 24 * time.Hour,
			AdminUser:   "admin",
		},
	}
}

// Load reads and parses the configuration file on top of Default and applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if p, ok := database.PathFromEnv(); ok {
		c.Database.Path = p
	}
	if s := os.Getenv("COMICFRAME_JWT_SECRET"); s != "" {
		c.Auth.JWTSecret = s
	}
	if a := os.Getenv("COMICFRAME_ADDR"); a != "" {
		c.Server.Addr = a
	}
	if u := os.Getenv("COMICFRAME_XKCD_BASE_URL"); u != "" {
		c.XKCD.BaseURL = u
	}
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	if strings.TrimSpace(c.XKCD.BaseURL) == "" {
		return fmt.Errorf("xkcd.base_url is required")
	}
	if c.XKCD.RequestTimeout <= 0 {
		return fmt.Errorf("xkcd.request_timeout must be positive")
	}
	if c.XKCD.FallbackLatestID <= 0 {
		return fmt.Errorf("xkcd.fallback_latest_id must be positive")
	}
	if c.Selection.MaxAttempts <= 0 {
		return fmt.Errorf("selection.max_attempts must be positive")
	}
	if c.Selection.RejectionPause < 0 {
		return fmt.Errorf("selection.rejection_pause must not be negative")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display.width and display.height must be positive")
	}
	if c.Display.Padding < 0 || 2*c.Display.Padding >= c.Display.Width || 2*c.Display.Padding >= c.Display.Height {
		return fmt.Errorf("display.padding %d does not fit a %dx%d canvas", c.Display.Padding, c.Display.Width, c.Display.Height)
	}
	switch c.Render.Transformer {
	case "imaging", "ffmpeg":
	default:
		return fmt.Errorf("render.transformer must be imaging or ffmpeg, got %q", c.Render.Transformer)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
