package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIMCATALOG_"

// Config defines server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Query       QueryConfig       `yaml:"query"`
	Notify      NotifyConfig      `yaml:"notify"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type WatcherConfig struct {
	InputDir       string        `yaml:"input_dir"`
	ProcessedDir   string        `yaml:"processed_dir"`
	QuarantineDir  string        `yaml:"quarantine_dir"`
	Debounce       time.Duration `yaml:"debounce"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ConvertTimeout time.Duration `yaml:"convert_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	MinSizeBytes   int64         `yaml:"min_size_bytes"`
}

type QueryConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type NotifyConfig struct {
	BufferSize     int           `yaml:"buffer_size"`
	WebhookURL     string        `yaml:"webhook_url"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	KafkaBrokers   []string      `yaml:"kafka_brokers"`
	KafkaTopic     string        `yaml:"kafka_topic"`
}

type ObjectStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "simcatalog.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Watcher: WatcherConfig{
			InputDir:       "data/raw",
			ProcessedDir:   "data/processed",
			QuarantineDir:  "data/quarantine",
			Debounce:       3 * time.Second,
			RescanInterval: 30 * time.Second,
			Workers:        2,
			QueueSize:      64,
			ConvertTimeout: 5 * time.Minute,
			MaxAttempts:    3,
			BackoffBase:    time.Second,
			BackoffMax:     30 * time.Second,
			MinSizeBytes:   16,
		},
		Query: QueryConfig{
			Timeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			BufferSize:     256,
			WebhookTimeout: 5 * time.Second,
			KafkaTopic:     "simcatalog.events",
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
			Bucket: "simulations",
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. A .env file in the working directory is read first and never
// overrides variables already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv(EnvPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"SERVER_HOST":            &cfg.Server.Host,
		"DB_DRIVER":              &cfg.DB.Driver,
		"DB_PATH":                &cfg.DB.Path,
		"DB_URL":                 &cfg.DB.URL,
		"LOG_LEVEL":              &cfg.Log.Level,
		"INPUT_DIR":              &cfg.Watcher.InputDir,
		"PROCESSED_DIR":          &cfg.Watcher.ProcessedDir,
		"QUARANTINE_DIR":         &cfg.Watcher.QuarantineDir,
		"WEBHOOK_URL":            &cfg.Notify.WebhookURL,
		"KAFKA_TOPIC":            &cfg.Notify.KafkaTopic,
		"OBJECTSTORE_ENDPOINT":   &cfg.ObjectStore.Endpoint,
		"OBJECTSTORE_ACCESS_KEY": &cfg.ObjectStore.AccessKey,
		"OBJECTSTORE_SECRET_KEY": &cfg.ObjectStore.SecretKey,
		"OBJECTSTORE_REGION":     &cfg.ObjectStore.Region,
		"OBJECTSTORE_BUCKET":     &cfg.ObjectStore.Bucket,
		"OBJECTSTORE_PREFIX":     &cfg.ObjectStore.Prefix,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SERVER_PORT":          &cfg.Server.Port,
		"WATCHER_WORKERS":      &cfg.Watcher.Workers,
		"WATCHER_QUEUE_SIZE":   &cfg.Watcher.QueueSize,
		"WATCHER_MAX_ATTEMPTS": &cfg.Watcher.MaxAttempts,
		"NOTIFY_BUFFER_SIZE":   &cfg.Notify.BufferSize,
	}
	for name, dst := range ints {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT":        &cfg.Server.ShutdownTimeout,
		"WATCHER_DEBOUNCE":        &cfg.Watcher.Debounce,
		"WATCHER_RESCAN_INTERVAL": &cfg.Watcher.RescanInterval,
		"WATCHER_CONVERT_TIMEOUT": &cfg.Watcher.ConvertTimeout,
		"WATCHER_BACKOFF_BASE":    &cfg.Watcher.BackoffBase,
		"WATCHER_BACKOFF_MAX":     &cfg.Watcher.BackoffMax,
		"QUERY_TIMEOUT":           &cfg.Query.Timeout,
	}
	for name, dst := range durations {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv(EnvPrefix + "WATCHER_MIN_SIZE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sWATCHER_MIN_SIZE_BYTES: %w", EnvPrefix, err)
		}
		cfg.Watcher.MinSizeBytes = n
	}
	if v := os.Getenv(EnvPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Notify.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "OBJECTSTORE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sOBJECTSTORE_ENABLED: %w", EnvPrefix, err)
		}
		cfg.ObjectStore.Enabled = b
	}
	if v := os.Getenv(EnvPrefix + "OBJECTSTORE_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sOBJECTSTORE_USE_SSL: %w", EnvPrefix, err)
		}
		cfg.ObjectStore.UseSSL = b
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for sqlite"))
		}
	case "postgres":
		if c.DB.URL == "" {
			errs = append(errs, errors.New("db.url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db.driver %q", c.DB.Driver))
	}
	for name, dir := range map[string]string{
		"input_dir":      c.Watcher.InputDir,
		"processed_dir":  c.Watcher.ProcessedDir,
		"quarantine_dir": c.Watcher.QuarantineDir,
	} {
		if dir == "" {
			errs = append(errs, fmt.Errorf("watcher.%s is required", name))
		}
	}
	if c.Watcher.Workers < 1 {
		errs = append(errs, errors.New("watcher.workers must be >= 1"))
	}
	if c.Watcher.QueueSize < 1 {
		errs = append(errs, errors.New("watcher.queue_size must be >= 1"))
	}
	if c.Watcher.MaxAttempts < 1 {
		errs = append(errs, errors.New("watcher.max_attempts must be >= 1"))
	}
	if c.Watcher.Debounce <= 0 {
		errs = append(errs, errors.New("watcher.debounce must be positive"))
	}
	if c.Watcher.ConvertTimeout <= 0 {
		errs = append(errs, errors.New("watcher.convert_timeout must be positive"))
	}
	if c.Query.Timeout <= 0 {
		errs = append(errs, errors.New("query.timeout must be positive"))
	}
	if c.Watcher.BackoffBase <= 0 || c.Watcher.BackoffMax < c.Watcher.BackoffBase {
		errs = append(errs, errors.New("watcher backoff must satisfy 0 < backoff_base <= backoff_max"))
	}
	if c.Notify.BufferSize < 1 {
		errs = append(errs, errors.New("notify.buffer_size must be >= 1"))
	}
	if len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
		errs = append(errs, errors.New("notify.kafka_topic is required with kafka_brokers"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
