// Package config loads runtime configuration from an optional YAML file,
// a .env file and RAGEBAIT_* environment variables, in that order of
// increasing precedence. Command line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given and it exists.
const DefaultFile = "ragebait.yaml"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
)

type Config struct {
	Store     StoreConfig   `yaml:"store"`
	Engine    EngineConfig  `yaml:"engine"`
	Scanner   ScannerConfig `yaml:"scanner"`
	Languages []string      `yaml:"languages"`
	Server    ServerConfig  `yaml:"server"`
	Fetch     FetchConfig   `yaml:"fetch"`
	Log       LogConfig     `yaml:"log"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Path is the sqlite file. Empty uses the default next to the binary.
	Path            string `yaml:"path"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
}

type EngineConfig struct {
	// Endpoint is the model server used by the local gateway.
	Endpoint string `yaml:"endpoint"`
	// Coordinator, when set, sends runML messages to a running
	// "ragebait serve" instead of using a local gateway.
	Coordinator     string        `yaml:"coordinator"`
	Timeout         time.Duration `yaml:"timeout"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
}

type ScannerConfig struct {
	Workers int `yaml:"workers"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type FetchConfig struct {
	CacheDir  string        `yaml:"cache_dir"`
	MaxAge    time.Duration `yaml:"max_age"`
	UserAgent string        `yaml:"user_agent"`
	OutputDir string        `yaml:"output_dir"`
	Workers   int           `yaml:"workers"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:          DriverSQLite,
			MongoDatabase:   "ragebait",
			MongoCollection: "storage",
		},
		Engine: EngineConfig{
			Endpoint:        "http://127.0.0.1:8765",
			Timeout:         30 * time.Second,
			BreakerFailures: 5,
		},
		Scanner: ScannerConfig{Workers: 4},
		Server:  ServerConfig{Addr: ":8080"},
		Fetch: FetchConfig{
			CacheDir:  "cache",
			MaxAge:    time.Hour,
			OutputDir: "results",
			Workers:   4,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate returns every problem found.
func (c *Config) Validate() []error {
	var errs = make([]error, 0)

	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, fmt.Errorf("store.mongo_uri is required for the mongo driver"))
		}
		if c.Store.MongoDatabase == "" || c.Store.MongoCollection == "" {
			errs = append(errs, fmt.Errorf("store.mongo_database and store.mongo_collection are required for the mongo driver"))
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("store.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Engine.Endpoint == "" && c.Engine.Coordinator == "" {
		errs = append(errs, fmt.Errorf("engine.endpoint or engine.coordinator is required"))
	}
	if c.Engine.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("engine.rate_per_second must not be negative"))
	}
	if c.Scanner.Workers < 1 {
		errs = append(errs, fmt.Errorf("scanner.workers must be at least 1"))
	}
	if c.Fetch.Workers < 1 {
		errs = append(errs, fmt.Errorf("fetch.workers must be at least 1"))
	}
	if c.Fetch.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_age must not be negative"))
	}
	return errs
}

// Load builds the configuration. An explicit path must exist; without one
// DefaultFile is used when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.readFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"RAGEBAIT_STORE_DRIVER":     &c.Store.Driver,
		"RAGEBAIT_STORE_PATH":       &c.Store.Path,
		"RAGEBAIT_MONGO_URI":        &c.Store.MongoURI,
		"RAGEBAIT_MONGO_DATABASE":   &c.Store.MongoDatabase,
		"RAGEBAIT_REDIS_ADDR":       &c.Store.RedisAddr,
		"RAGEBAIT_REDIS_PASSWORD":   &c.Store.RedisPassword,
		"RAGEBAIT_ENGINE_ENDPOINT":  &c.Engine.Endpoint,
		"RAGEBAIT_COORDINATOR":      &c.Engine.Coordinator,
		"RAGEBAIT_SERVER_ADDR":      &c.Server.Addr,
		"RAGEBAIT_LOG_LEVEL":        &c.Log.Level,
		"RAGEBAIT_FETCH_USER_AGENT": &c.Fetch.UserAgent,
		"RAGEBAIT_FETCH_OUTPUT_DIR": &c.Fetch.OutputDir,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("RAGEBAIT_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAGEBAIT_REDIS_DB must be an integer: %w", err)
		}
		c.Store.RedisDB = n
	}
	if v := os.Getenv("RAGEBAIT_SCANNER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAGEBAIT_SCANNER_WORKERS must be an integer: %w", err)
		}
		c.Scanner.Workers = n
	}
	return nil
}
