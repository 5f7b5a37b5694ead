package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides (LERNGUIDE_STORAGE_DRIVER, ...).
const EnvPrefix = "LERNGUIDE"

const (
	DefaultServerAddress  = ":8090"
	DefaultStorageDriver  = "badger"
	DefaultStorageKey     = "lern-guide-session"
	DefaultCapacityBytes  = 5 << 20
	DefaultMaxUploadBytes = 10 << 20
	DefaultSaveDebounceMS = 250
	DefaultProvider       = "gemini"
	DefaultRateLimit      = 10
	DefaultTimeoutSeconds = 120
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" split_words:"true"`
	Storage     StorageConfig             `json:"storage"`
	Databases   map[string]DatabaseConfig `json:"databases" ignored:"true"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers" ignored:"true"`
	Generation  GenerationConfig          `json:"generation"`
	Logging     LoggingConfig             `json:"logging"`
	CORS        CORSConfig                `json:"cors"`
	APIToken    string                    `json:"api_token" split_words:"true"`
}

type BasicConfig struct {
	ServerAddress  string `json:"server_address" split_words:"true"`
	SaveDebounceMS int    `json:"save_debounce_ms" split_words:"true"`
	MaxUploadBytes int64  `json:"max_upload_bytes" split_words:"true"`
}

// StorageConfig selects the medium holding the session snapshot.
type StorageConfig struct {
	Driver        string `json:"driver"`
	Path          string `json:"path"`
	CapacityBytes int    `json:"capacity_bytes" split_words:"true"`
	Key           string `json:"key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type GenerationConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key" split_words:"true"`
	// RateLimit is the number of generation requests allowed per minute.
	RateLimit      int `json:"rate_limit" split_words:"true"`
	TimeoutSeconds int `json:"timeout_seconds" split_words:"true"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
	FilePath    string `json:"file_path" split_words:"true"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins" split_words:"true"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error; values then come from the environment and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(filepath.Dir(absPath), cfg.Storage.Path)
	}
	return &cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.SaveDebounceMS <= 0 {
		c.BasicConfig.SaveDebounceMS = DefaultSaveDebounceMS
	}
	if c.BasicConfig.MaxUploadBytes <= 0 {
		c.BasicConfig.MaxUploadBytes = DefaultMaxUploadBytes
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.Driver == "badger" && c.Storage.Path == "" {
		c.Storage.Path = "./data/session"
	}
	if c.Storage.CapacityBytes <= 0 {
		c.Storage.CapacityBytes = DefaultCapacityBytes
	}
	if c.Storage.Key == "" {
		c.Storage.Key = DefaultStorageKey
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = DefaultProvider
	}
	if c.Generation.RateLimit <= 0 {
		c.Generation.RateLimit = DefaultRateLimit
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"http://localhost:5173"}
	}
}

// Validate reports configuration that cannot be used to start the service.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "badger", "redis":
	case "sqlite", "sqlite3", "mysql", "postgres", "pgx":
		if _, ok := c.Databases[c.Storage.Driver]; !ok {
			return fmt.Errorf("database config for %s not found", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	switch c.Generation.Provider {
	case "gemini", "openai", "claude":
	default:
		return fmt.Errorf("unsupported generation provider: %s", c.Generation.Provider)
	}
	return nil
}

// Provider returns the provider block for name, with the generation API key as fallback.
func (c *Config) Provider(name string) ProviderConfig {
	p := c.Providers[name]
	if p.APIKey == "" {
		p.APIKey = c.Generation.APIKey
	}
	return p
}
