package ytuploader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ausocean/utils/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secret locations.
const (
	EnvSecrets = "YOUTUBE_SECRETS"
	EnvToken   = "YOUTUBE_TOKEN"
)

// LogConfig - where and how much to log.
type LogConfig struct {
	File       string `yaml:"file"`         // rotated log file, empty for stderr only
	Level      string `yaml:"level"`        // debug, info, warning or error
	MaxSizeMB  int    `yaml:"max_size_mb"`  // size before rotation
	MaxBackups int    `yaml:"max_backups"`  // rotated files kept
	MaxAgeDays int    `yaml:"max_age_days"` // days rotated files are kept
	Suppress   bool   `yaml:"suppress"`     // suppress repeated messages
}

// Config holds every run parameter. Zero fields in the YAML file keep their
// defaults.
type Config struct {
	Manifest      string    `yaml:"manifest"`
	Ledger        string    `yaml:"ledger"`
	Journal       string    `yaml:"journal"` // empty disables the journal
	ClientSecrets string    `yaml:"client_secrets"`
	Token         string    `yaml:"token"`
	MaxUploads    int       `yaml:"max_uploads"`
	PrivacyStatus string    `yaml:"privacy_status"`
	CategoryID    string    `yaml:"category_id"`
	ChunkSize     int       `yaml:"chunk_size"`
	Progress      bool      `yaml:"progress"`
	Log           LogConfig `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Manifest:      filepath.Join("videos", "content.csv"),
		Ledger:        "uploaded_videos.json",
		Journal:       filepath.Join("data", "journal.sqlite3.db"),
		ClientSecrets: "client_secret.json",
		Token:         "youtube-token.json",
		MaxUploads:    DefaultMaxUploads,
		PrivacyStatus: DefaultPrivacyStatus,
		CategoryID:    DefaultCategoryID,
		ChunkSize:     DefaultChunkSize,
		Progress:      true,
		Log: LogConfig{
			File:       filepath.Join("data", "uploader.log"),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	r, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("open config: %w", err)
	default:
		defer r.Close()
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvSecrets)); v != "" {
		c.ClientSecrets = v
	}
	if v := strings.TrimSpace(getenv(EnvToken)); v != "" {
		c.Token = v
	}
}

// Validate checks c and normalises the category to its ID.
func (c *Config) Validate() error {
	if c.Manifest == "" {
		return errors.New("manifest path is required")
	}
	if c.Ledger == "" {
		return errors.New("ledger path is required")
	}
	if c.ClientSecrets == "" {
		return errors.New("client secrets location is required")
	}
	if c.Token == "" {
		return errors.New("token location is required")
	}
	if c.MaxUploads < 0 {
		return fmt.Errorf("max_uploads must not be negative, got %d", c.MaxUploads)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if !ValidPrivacy(c.PrivacyStatus) {
		return fmt.Errorf("invalid privacy status: %s", c.PrivacyStatus)
	}
	cat := SanitiseCategory(c.CategoryID)
	if cat == "" {
		return fmt.Errorf("invalid category ID or name: %s", c.CategoryID)
	}
	c.CategoryID = cat
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name to its logging constant.
func ParseLogLevel(level string) (int8, error) {
	levels := map[string]int8{
		"debug":   logging.Debug,
		"info":    logging.Info,
		"warning": logging.Warning,
		"error":   logging.Error,
	}
	l, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return 0, fmt.Errorf("invalid log level: %q", level)
	}
	return l, nil
}
