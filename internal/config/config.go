package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for dedupe.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Dedupe     DedupeConfig     `toml:"dedupe"`
	Storage    StorageConfig    `toml:"storage"`
	Database   DatabaseConfig   `toml:"database"`
	HTTP       HTTPConfig       `toml:"http"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// DedupeConfig controls how unique names are derived.
type DedupeConfig struct {
	PathPrefix   string            `toml:"path_prefix"`
	Extensions   map[string]string `toml:"extensions,omitempty"`
	HashLength   int               `toml:"hash_length"`
	KeepBasename bool              `toml:"keep_basename"`
}

// StorageConfig represents configuration for the media blob store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "filesystem", "memory" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style,omitempty"`
}

// DatabaseConfig represents configuration for the record database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "postgres"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	DSN     string `toml:"dsn,omitempty"`      // only used for type=postgres
}

// HTTPConfig holds settings for the serve command.
type HTTPConfig struct {
	Listen           string `toml:"listen"`
	MediaPrefix      string `toml:"media_prefix"`
	StaticPrefix     string `toml:"static_prefix,omitempty"`
	StaticRoot       string `toml:"static_root,omitempty"`
	MaxAge           int    `toml:"max_age"`
	StripVary        bool   `toml:"strip_vary"`
	Gzip             bool   `toml:"gzip"`
	RedirectCacheTTL string `toml:"redirect_cache_ttl"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Dedupe: DedupeConfig{
			PathPrefix: "dd",
			HashLength: 7,
		},
		Storage: StorageConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "media"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		HTTP: HTTPConfig{
			Listen:           "127.0.0.1:8080",
			MediaPrefix:      "/media/",
			MaxAge:           60,
			StripVary:        true,
			Gzip:             true,
			RedirectCacheTTL: "0s",
		},
	}
}

// RedirectTTL parses HTTP.RedirectCacheTTL. An empty or zero value disables
// the redirect cache.
func (c *HTTPConfig) RedirectTTL() (time.Duration, error) {
	if c.RedirectCacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RedirectCacheTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid redirect_cache_ttl %q: %w", c.RedirectCacheTTL, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid redirect_cache_ttl %q: must not be negative", c.RedirectCacheTTL)
	}
	return d, nil
}

// ApplyEnv overrides dedupe settings from DEDUPE_PATH_PREFIX,
// DEDUPE_HASH_LENGTH and DEDUPE_KEEP_BASENAME. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DEDUPE_PATH_PREFIX"); v != "" {
		c.Dedupe.PathPrefix = v
	}
	if v := getenv("DEDUPE_HASH_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEDUPE_HASH_LENGTH %q: %w", v, err)
		}
		c.Dedupe.HashLength = n
	}
	if v := getenv("DEDUPE_KEEP_BASENAME"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEDUPE_KEEP_BASENAME %q: %w", v, err)
		}
		c.Dedupe.KeepBasename = b
	}
	return nil
}

// Validate checks the settings that cannot be caught by decoding alone.
func (c *Config) Validate() error {
	if strings.Contains(strings.Trim(c.Dedupe.PathPrefix, "/"), "/") {
		return fmt.Errorf("dedupe.path_prefix must be a single path segment, got %q", c.Dedupe.PathPrefix)
	}
	if c.Dedupe.HashLength < 0 || c.Dedupe.HashLength > 32 {
		return fmt.Errorf("dedupe.hash_length must be between 1 and 32 (0 for the default), got %d", c.Dedupe.HashLength)
	}
	for from, to := range c.Dedupe.Extensions {
		if !strings.HasPrefix(from, ".") || !strings.HasPrefix(to, ".") {
			return fmt.Errorf("dedupe.extensions entries must start with a dot: %q = %q", from, to)
		}
	}

	if c.HTTP.MediaPrefix != "" && strings.Trim(c.HTTP.MediaPrefix, "/") == "" {
		return fmt.Errorf("http.media_prefix cannot be %q: media would shadow every other route", c.HTTP.MediaPrefix)
	}
	if c.HTTP.StaticPrefix != "" {
		if strings.Trim(c.HTTP.StaticPrefix, "/") == "" {
			return fmt.Errorf("http.static_prefix cannot be %q", c.HTTP.StaticPrefix)
		}
		if c.HTTP.StaticRoot == "" {
			return fmt.Errorf("http.static_root required when http.static_prefix is set")
		}
		if strings.Trim(c.HTTP.StaticPrefix, "/") == strings.Trim(c.HTTP.MediaPrefix, "/") {
			return fmt.Errorf("http.static_prefix and http.media_prefix must differ")
		}
	}
	if c.HTTP.MaxAge < 0 {
		return fmt.Errorf("http.max_age cannot be negative")
	}
	if _, err := c.HTTP.RedirectTTL(); err != nil {
		return err
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
