package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything the soilrisk service and CLI need to boot.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Versions VersionsConfig `yaml:"versions"`
	Events   EventsConfig   `yaml:"events"`
	Identity IdentityConfig `yaml:"identity"`
}

// DatabaseConfig locates the SQLite file holding field data and versions.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig points at extra standard definitions layered over the
// built-in ones.
type CatalogConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig controls the gRPC, REST and metrics listeners. An empty
// address disables that listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// VersionsConfig bounds version number allocation retries.
type VersionsConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// EventsConfig enables publishing version events to Kafka.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// IdentityConfig names the analyst this process acts for.
type IdentityConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"displayName"`
	Email       string `yaml:"email"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SOILRISK_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "soilrisk.db"},
		Server: ServerConfig{
			Address:         ":50061",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Versions: VersionsConfig{MaxAttempts: 5, Backoff: 10 * time.Millisecond},
		Events:   EventsConfig{Topic: "soilrisk.evaluations"},
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path is required")
	}
	if c.Versions.MaxAttempts < 1 {
		return fmt.Errorf("config: versions.maxAttempts must be at least 1, got %d", c.Versions.MaxAttempts)
	}
	if c.Events.Enabled && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return errors.New("config: events.enabled needs brokers and a topic")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOILRISK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SOILRISK_CATALOG_DIR"); v != "" {
		cfg.Catalog.Dir = v
	}
	if v, ok := os.LookupEnv("SOILRISK_SERVER_ADDRESS"); ok {
		cfg.Server.Address = v
	}
	if v, ok := os.LookupEnv("SOILRISK_HTTP_ADDRESS"); ok {
		cfg.Server.HTTPAddress = v
	}
	if v, ok := os.LookupEnv("SOILRISK_METRICS_ADDRESS"); ok {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SOILRISK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOILRISK_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SOILRISK_VERSION_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Versions.MaxAttempts = n
		}
	}
	if v := os.Getenv("SOILRISK_VERSION_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Versions.Backoff = d
		}
	}
	if v := os.Getenv("SOILRISK_KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = splitList(v)
		cfg.Events.Enabled = true
	}
	if v := os.Getenv("SOILRISK_KAFKA_TOPIC"); v != "" {
		cfg.Events.Topic = v
	}
	if v := os.Getenv("SOILRISK_ANALYST_ID"); v != "" {
		cfg.Identity.ID = v
	}
	if v := os.Getenv("SOILRISK_ANALYST_NAME"); v != "" {
		cfg.Identity.DisplayName = v
	}
	if v := os.Getenv("SOILRISK_ANALYST_EMAIL"); v != "" {
		cfg.Identity.Email = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
