package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type Data struct {
	Dir string `json:"dir" yaml:"dir"`
}

type Storage struct {
	Driver string `json:"driver" yaml:"driver"`
	Dir    string `json:"dir" yaml:"dir"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// Quotes throttles reads from the quote source. Zero values disable a limit.
type Quotes struct {
	MinRequestIntervalMS int `json:"min_request_interval_ms" yaml:"min_request_interval_ms"`
	MaxRequestsPerMinute int `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int `json:"burst" yaml:"burst"`
}

type Yahoo struct {
	BaseURL              string `json:"base_url" yaml:"base_url"`
	Range                string `json:"range" yaml:"range"`
	TimeoutSec           int    `json:"timeout_sec" yaml:"timeout_sec"`
	MinRequestIntervalMS int    `json:"min_request_interval_ms" yaml:"min_request_interval_ms"`
}

type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	Data    Data    `json:"data" yaml:"data"`
	Storage Storage `json:"storage" yaml:"storage"`
	Quotes  Quotes  `json:"quotes" yaml:"quotes"`
	Yahoo   Yahoo   `json:"yahoo" yaml:"yahoo"`
}

func Default() Config {
	return Config{
		Server:  Server{Port: "8080", RequestTimeoutSec: 10},
		Data:    Data{Dir: "data"},
		Storage: Storage{Driver: DriverFile, Dir: ".stockwatch"},
		Quotes:  Quotes{Burst: 1},
		Yahoo: Yahoo{
			BaseURL:              "https://query1.finance.yahoo.com",
			Range:                "5y",
			TimeoutSec:           15,
			MinRequestIntervalMS: 1000,
		},
	}
}

var defaultFiles = []string{"config.json", "config.yaml"}

// Load reads config from path, JSON or YAML by extension. If path is empty
// CONFIG_FILE and then config.json / config.yaml are tried; a missing file
// yields defaults. A .env file, when present, is loaded into the environment
// first and environment variables override file values.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		for _, p := range defaultFiles {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate reports settings the binaries cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverFile, DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn (DATABASE_URL) is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if c.Data.Dir == "" {
		errs = append(errs, errors.New("data.dir is empty"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	envInt("QUOTES_MIN_INTERVAL_MS", 0, &cfg.Quotes.MinRequestIntervalMS)
	envInt("QUOTES_MAX_RPM", 0, &cfg.Quotes.MaxRequestsPerMinute)
	envInt("QUOTES_BURST", 1, &cfg.Quotes.Burst)
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("YAHOO_RANGE"); v != "" {
		cfg.Yahoo.Range = v
	}
}

// envInt sets *dst from the named variable when it parses and is >= min.
func envInt(name string, min int, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= min {
		*dst = x
	}
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
