// Package config loads host process configuration: defaults, overlaid by an
// optional YAML file, overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Backend names a storage/bus wiring choice.
const (
	BackendMemory = "memory"
	BackendLoam   = "loam"
	BackendRedis  = "redis"
)

// Redis holds the connection settings shared by the redis store and bus.
type Redis struct {
	Addr     string `yaml:"addr" env:"BIVOUAC_REDIS_ADDR"`
	Password string `yaml:"password" env:"BIVOUAC_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"BIVOUAC_REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"BIVOUAC_REDIS_PREFIX"`
}

// Roster is the static session membership for hosts without an external
// membership source: which identity controls which entities, every known
// entity, and the active scene.
type Roster struct {
	Players  map[string][]string `yaml:"players"`
	Entities []string            `yaml:"entities"`
	Scene    []string            `yaml:"scene"`
}

// Config is the full host process configuration.
type Config struct {
	Identity    string        `yaml:"identity" env:"BIVOUAC_IDENTITY"`
	Backend     string        `yaml:"backend" env:"BIVOUAC_BACKEND"`
	DataDir     string        `yaml:"dataDir" env:"BIVOUAC_DATA_DIR"`
	HTTPAddr    string        `yaml:"httpAddr" env:"BIVOUAC_HTTP_ADDR"`
	QuietPeriod time.Duration `yaml:"quietPeriod" env:"BIVOUAC_QUIET_PERIOD"`
	AckTimeout  time.Duration `yaml:"ackTimeout" env:"BIVOUAC_ACK_TIMEOUT"`
	CatalogPath string        `yaml:"catalogPath" env:"BIVOUAC_CATALOG"`
	LogLevel    string        `yaml:"logLevel" env:"BIVOUAC_LOG_LEVEL"`
	Redis       Redis         `yaml:"redis"`
	Roster      Roster        `yaml:"roster"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Identity:    "host",
		Backend:     BackendLoam,
		DataDir:     ".bivouac",
		HTTPAddr:    ":8080",
		QuietPeriod: 100 * time.Millisecond,
		AckTimeout:  5 * time.Second,
		LogLevel:    "info",
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "bivouac:session:",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty or the file is absent, the file layer is skipped), then
// environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Optional file.
		default:
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendMemory, BackendLoam, BackendRedis:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.QuietPeriod <= 0 {
		return fmt.Errorf("quietPeriod must be positive, got %s", c.QuietPeriod)
	}
	return nil
}
