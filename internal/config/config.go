// Package config loads and validates the listingapp YAML configuration.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [Load] when a key is omitted.
const (
	DefaultPollInterval   = 5 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultFetchAttempts  = 3
	DefaultPageLimit      = 20
	DefaultOnCount        = 3
	DefaultOffCount       = 6
)

// Environment variables that override the file, e.g. in containers.
const (
	EnvRemoteURL    = "LISTINGAPP_REMOTE_URL"
	EnvDatabasePath = "LISTINGAPP_DATABASE_PATH"
	EnvStatePath    = "LISTINGAPP_STATE_PATH"
)

// Bounds enforced on poll_interval.
const (
	MinPollInterval = 10 * time.Second
	MaxPollInterval = 24 * time.Hour
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// RemoteURL is the listings feed, e.g. "https://example.com/listings.json".
	RemoteURL string `yaml:"remote_url"`

	// DatabasePath is the SQLite file. Defaults to ~/.local/share/listingapp/listings.db.
	DatabasePath string `yaml:"database_path,omitempty"`

	// StatePath is the persisted navigation state. Defaults to
	// ~/.local/share/listingapp/navigation.cbor.
	StatePath string `yaml:"state_path,omitempty"`

	// PollInterval controls how often the daemon re-syncs. Minimum 10s,
	// maximum 24h. Defaults to 5m.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// RequestTimeout bounds a single fetch of the feed.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// FetchAttempts is how many times a transient fetch failure is tried.
	FetchAttempts int `yaml:"fetch_attempts,omitempty"`

	// PruneMissing deletes local listings that the feed no longer returns.
	PruneMissing bool `yaml:"prune_missing,omitempty"`

	Paging PagingConfig `yaml:"paging,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// PagingConfig sizes the tiled listing feed.
type PagingConfig struct {
	// Limit is the number of listings per page.
	Limit int `yaml:"limit,omitempty"`

	// OnCount is how many pages around the pivot stay subscribed.
	OnCount int `yaml:"on_count,omitempty"`

	// OffCount is how many pages around the pivot are retained, live ones
	// included. Must be at least OnCount.
	OffCount int `yaml:"off_count,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "listingapp".
	ServiceName string `yaml:"service_name,omitempty"`

	// Headers are sent as gRPC metadata on every OTLP request, e.g.
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/listingapp/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "listingapp", "config.yaml"), nil
}

// dataDir is where the database and navigation state live by default.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "listingapp"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile exports the variables in the dotenv file at path without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		EnvRemoteURL:    &c.RemoteURL,
		EnvDatabasePath: &c.DatabasePath,
		EnvStatePath:    &c.StatePath,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

// Write validates c and saves it as YAML at path, creating parent
// directories as needed. The file is readable only by the owner.
func (c *Config) Write(path string) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// validate fills defaults and checks that all fields are well-formed.
func (c *Config) validate() error {
	if c.RemoteURL == "" {
		return fmt.Errorf("remote_url is required")
	}
	u, err := url.ParseRequestURI(c.RemoteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote_url %q must be a valid http or https URL", c.RemoteURL)
	}

	if c.DatabasePath == "" || c.StatePath == "" {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		if c.DatabasePath == "" {
			c.DatabasePath = filepath.Join(dir, "listings.db")
		}
		if c.StatePath == "" {
			c.StatePath = filepath.Join(dir, "navigation.cbor")
		}
	}

	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("poll_interval %v is too short (minimum %v)", c.PollInterval, MinPollInterval)
	}
	if c.PollInterval > MaxPollInterval {
		return fmt.Errorf("poll_interval %v is too long (maximum %v)", c.PollInterval, MaxPollInterval)
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout %v must be positive", c.RequestTimeout)
	}

	if c.FetchAttempts == 0 {
		c.FetchAttempts = DefaultFetchAttempts
	}
	if c.FetchAttempts < 0 {
		return fmt.Errorf("fetch_attempts %d must be positive", c.FetchAttempts)
	}

	if err := c.Paging.validate(); err != nil {
		return err
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

func (p *PagingConfig) validate() error {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.OnCount == 0 {
		p.OnCount = DefaultOnCount
	}
	if p.OffCount == 0 {
		p.OffCount = max(DefaultOffCount, p.OnCount)
	}

	switch {
	case p.Limit < 0:
		return fmt.Errorf("paging.limit %d must be positive", p.Limit)
	case p.OnCount < 0:
		return fmt.Errorf("paging.on_count %d must be positive", p.OnCount)
	case p.OffCount < p.OnCount:
		return fmt.Errorf("paging.off_count %d must be at least paging.on_count %d", p.OffCount, p.OnCount)
	}
	return nil
}
