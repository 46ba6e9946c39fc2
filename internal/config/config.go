// Package config loads runtime settings from the environment, an optional .env file
// and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the Stash backend service.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	HTTP        HTTPConfig        `yaml:"http"`
	Storage     StorageConfig     `yaml:"storage"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	AI          AIConfig          `yaml:"ai"`
	Snapshot    SnapshotConfig    `yaml:"snapshot"`
	Fetch       FetchConfig       `yaml:"fetch"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Redis       RedisConfig       `yaml:"redis"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	RateLimitPerMin int           `yaml:"rate_limit_per_minute"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig locates the record store tiers and the local image directory.
type StorageConfig struct {
	SharedDir  string `yaml:"shared_dir"`
	PrivateDir string `yaml:"private_dir"`
	ImagesDir  string `yaml:"images_dir"`
}

// LedgerConfig selects the credit defaults and the optional remote mirror.
type LedgerConfig struct {
	Plan        string  `yaml:"plan"`
	UnlockCost  float64 `yaml:"unlock_cost"`
	Timezone    string  `yaml:"timezone"`
	AccountID   string  `yaml:"account_id"`
	Mirror      string  `yaml:"mirror"` // "", "postgres" or "redis"
	DatabaseURL string  `yaml:"database_url"`
}

// Location resolves Timezone. An empty value means the process local zone.
func (l LedgerConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(l.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

type AIConfig struct {
	Vendor   string        `yaml:"vendor"` // built-in vendor: "openai" or "anthropic"
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Endpoint string        `yaml:"endpoint"`
	Ceiling  time.Duration `yaml:"ceiling"`
	SealKey  string        `yaml:"seal_key"` // base64, 32 bytes
}

type SnapshotConfig struct {
	Browser        string        `yaml:"browser"`
	CaptureTimeout time.Duration `yaml:"capture_timeout"`
	Interval       time.Duration `yaml:"interval"`
	Debounce       time.Duration `yaml:"debounce"`
}

type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ObjectStoreConfig enables S3 image storage when Bucket is set.
type ObjectStoreConfig struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// RabbitMQConfig enables asset events when URL is set.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Load reads .env (when present), then the YAML file named by STASH_CONFIG_FILE, then
// environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("STASH_CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used for local development.
func Defaults() Config {
	dataDir := filepath.Join(userDataDir(), "stash")
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateLimitPerMin: 30,
			RateLimitBurst:  5,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			PrivateDir: dataDir,
			ImagesDir:  dataDir,
		},
		Ledger: LedgerConfig{
			Plan:       "free",
			UnlockCost: 10,
		},
		AI: AIConfig{
			Vendor:  "openai",
			Ceiling: 15 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Browser:        "chromium",
			CaptureTimeout: 10 * time.Second,
			Interval:       500 * time.Millisecond,
			Debounce:       2 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 15 * time.Minute,
		},
		RabbitMQ: RabbitMQConfig{
			Exchange:   "stash",
			RoutingKey: "assets",
			QueueName:  "stash_assets",
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Validate rejects combinations that cannot be wired.
func (c Config) Validate() error {
	switch c.Ledger.Mirror {
	case "", "redis":
	case "postgres":
		if c.Ledger.DatabaseURL == "" {
			return fmt.Errorf("ledger mirror postgres requires STASH_DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown ledger mirror %q", c.Ledger.Mirror)
	}
	if _, err := c.Ledger.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getString("STASH_LOG_LEVEL", c.LogLevel)

	c.HTTP.Addr = getString("STASH_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.RateLimitPerMin = getInt("STASH_RATE_LIMIT_PER_MINUTE", c.HTTP.RateLimitPerMin)
	c.HTTP.RateLimitBurst = getInt("STASH_RATE_LIMIT_BURST", c.HTTP.RateLimitBurst)
	c.HTTP.ShutdownTimeout = getDuration("STASH_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)

	c.Storage.SharedDir = getString("STASH_SHARED_DIR", c.Storage.SharedDir)
	c.Storage.PrivateDir = getString("STASH_PRIVATE_DIR", c.Storage.PrivateDir)
	c.Storage.ImagesDir = getString("STASH_IMAGES_DIR", c.Storage.ImagesDir)

	c.Ledger.Plan = getString("STASH_PLAN", c.Ledger.Plan)
	c.Ledger.UnlockCost = getFloat("STASH_UNLOCK_COST", c.Ledger.UnlockCost)
	c.Ledger.Timezone = getString("STASH_TIMEZONE", c.Ledger.Timezone)
	c.Ledger.AccountID = getString("STASH_ACCOUNT_ID", c.Ledger.AccountID)
	c.Ledger.Mirror = getString("STASH_LEDGER_MIRROR", c.Ledger.Mirror)
	c.Ledger.DatabaseURL = getString("STASH_DATABASE_URL", c.Ledger.DatabaseURL)

	c.AI.Vendor = getString("STASH_AI_VENDOR", c.AI.Vendor)
	c.AI.APIKey = getString("STASH_AI_API_KEY", c.AI.APIKey)
	c.AI.Model = getString("STASH_AI_MODEL", c.AI.Model)
	c.AI.Endpoint = getString("STASH_AI_ENDPOINT", c.AI.Endpoint)
	c.AI.Ceiling = getDuration("STASH_AI_CEILING", c.AI.Ceiling)
	c.AI.SealKey = getString("STASH_SEAL_KEY", c.AI.SealKey)

	c.Snapshot.Browser = getString("STASH_SNAPSHOT_BROWSER", c.Snapshot.Browser)
	c.Snapshot.CaptureTimeout = getDuration("STASH_SNAPSHOT_TIMEOUT", c.Snapshot.CaptureTimeout)
	c.Snapshot.Interval = getDuration("STASH_SNAPSHOT_INTERVAL", c.Snapshot.Interval)
	c.Snapshot.Debounce = getDuration("STASH_SNAPSHOT_DEBOUNCE", c.Snapshot.Debounce)

	c.Fetch.Timeout = getDuration("STASH_FETCH_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.CacheTTL = getDuration("STASH_FETCH_CACHE_TTL", c.Fetch.CacheTTL)

	c.ObjectStore.Bucket = getString("STASH_S3_BUCKET", c.ObjectStore.Bucket)
	c.ObjectStore.Region = getString("STASH_S3_REGION", c.ObjectStore.Region)
	c.ObjectStore.Endpoint = getString("STASH_S3_ENDPOINT", c.ObjectStore.Endpoint)
	c.ObjectStore.Prefix = getString("STASH_S3_PREFIX", c.ObjectStore.Prefix)
	c.ObjectStore.PublicBaseURL = getString("STASH_S3_PUBLIC_BASE_URL", c.ObjectStore.PublicBaseURL)

	c.RabbitMQ.URL = getString("STASH_RABBITMQ_URL", c.RabbitMQ.URL)
	c.RabbitMQ.Exchange = getString("STASH_RABBITMQ_EXCHANGE", c.RabbitMQ.Exchange)
	c.RabbitMQ.RoutingKey = getString("STASH_RABBITMQ_ROUTING_KEY", c.RabbitMQ.RoutingKey)
	c.RabbitMQ.QueueName = getString("STASH_RABBITMQ_QUEUE", c.RabbitMQ.QueueName)

	c.Redis.Addr = getString("STASH_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getString("STASH_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getInt("STASH_REDIS_DB", c.Redis.DB)
	c.Redis.ConnectTimeout = getDuration("STASH_REDIS_CONNECT_TIMEOUT", c.Redis.ConnectTimeout)
}

func userDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
