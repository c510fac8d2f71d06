package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Price cache
	Cache CacheConfig

	// Market data transport
	Fetcher FetcherConfig

	// Scan orchestration
	Scan ScanConfig

	// Symbol universes
	Universe UniverseConfig

	// Outbound HTTP (universe downloads)
	HTTP HTTPConfig

	// Database (scan history, optional)
	Database DatabaseConfig

	// Redis (fundamentals cache, optional)
	Redis RedisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// CacheConfig holds the on-disk price cache settings
type CacheConfig struct {
	Dir          string
	TTL          time.Duration
	PricesSubdir string
	IndexName    string
}

// FetcherConfig holds market data download settings
type FetcherConfig struct {
	BatchChunkSize    int
	ChunkConcurrency  int
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffFactor     float64
	DefaultPeriod     string
	RequestsPerSecond float64
}

// ScanConfig holds scan orchestration settings
type ScanConfig struct {
	Workers          int
	WithFundamentals bool
	PresetsPath      string
}

// UniverseConfig holds symbol universe settings
type UniverseConfig struct {
	Dir     string
	Refresh time.Duration
}

// HTTPConfig holds outbound HTTP client settings
type HTTPConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	Enabled        bool
	FundamentalTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := Default()

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)

	cfg.Cache = CacheConfig{
		Dir:          getEnv("CACHE_DIR", cfg.Cache.Dir),
		TTL:          time.Duration(getEnvAsInt("CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		PricesSubdir: getEnv("CACHE_PRICES_SUBDIR", cfg.Cache.PricesSubdir),
		IndexName:    getEnv("CACHE_INDEX_NAME", cfg.Cache.IndexName),
	}

	cfg.Fetcher = FetcherConfig{
		BatchChunkSize:    getEnvAsInt("FETCH_BATCH_CHUNK_SIZE", cfg.Fetcher.BatchChunkSize),
		ChunkConcurrency:  getEnvAsInt("FETCH_CHUNK_CONCURRENCY", cfg.Fetcher.ChunkConcurrency),
		MaxRetries:        getEnvAsInt("FETCH_MAX_RETRIES", cfg.Fetcher.MaxRetries),
		InitialBackoff:    getEnvAsDuration("FETCH_INITIAL_BACKOFF", "1s"),
		BackoffFactor:     getEnvAsFloat("FETCH_BACKOFF_FACTOR", cfg.Fetcher.BackoffFactor),
		DefaultPeriod:     getEnv("FETCH_DEFAULT_PERIOD", cfg.Fetcher.DefaultPeriod),
		RequestsPerSecond: getEnvAsFloat("FETCH_REQUESTS_PER_SECOND", cfg.Fetcher.RequestsPerSecond),
	}

	cfg.Scan = ScanConfig{
		Workers:          getEnvAsInt("SCAN_WORKERS", cfg.Scan.Workers),
		WithFundamentals: getEnvAsBool("SCAN_WITH_FUNDAMENTALS", cfg.Scan.WithFundamentals),
		PresetsPath:      getEnv("SCAN_PRESETS_PATH", cfg.Scan.PresetsPath),
	}

	cfg.Universe = UniverseConfig{
		Dir:     getEnv("UNIVERSE_DIR", cfg.Universe.Dir),
		Refresh: getEnvAsDuration("UNIVERSE_REFRESH", "24h"),
	}

	cfg.HTTP = HTTPConfig{
		Timeout:           getEnvAsDuration("HTTP_TIMEOUT", "30s"),
		MaxRetries:        getEnvAsInt("HTTP_MAX_RETRIES", cfg.HTTP.MaxRetries),
		RequestsPerSecond: getEnvAsFloat("HTTP_REQUESTS_PER_SECOND", cfg.HTTP.RequestsPerSecond),
	}

	cfg.Database = DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxConns:        getEnvAsInt("DB_MAX_CONNS", cfg.Database.MaxConns),
		MinConns:        getEnvAsInt("DB_MIN_CONNS", cfg.Database.MinConns),
		MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
		MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
	}

	cfg.Redis = RedisConfig{
		Host:           getEnv("REDIS_HOST", cfg.Redis.Host),
		Port:           getEnv("REDIS_PORT", cfg.Redis.Port),
		Password:       getEnv("REDIS_PASSWORD", ""),
		DB:             getEnvAsInt("REDIS_DB", 0),
		Enabled:        getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled),
		FundamentalTTL: getEnvAsDuration("REDIS_FUNDAMENTAL_TTL", "12h"),
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading the environment
func Default() *Config {
	return &Config{
		Port: "8089",
		Env:  "development",
		Cache: CacheConfig{
			Dir:          "data_cache",
			TTL:          7 * 24 * time.Hour,
			PricesSubdir: "prices",
			IndexName:    "index.db",
		},
		Fetcher: FetcherConfig{
			BatchChunkSize:    60,
			ChunkConcurrency:  8,
			MaxRetries:        3,
			InitialBackoff:    time.Second,
			BackoffFactor:     2.0,
			DefaultPeriod:     "1y",
			RequestsPerSecond: 10,
		},
		Scan: ScanConfig{
			Workers:     4,
			PresetsPath: "presets.yaml",
		},
		Universe: UniverseConfig{
			Dir:     "data_cache/universe",
			Refresh: 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 5,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:           "localhost",
			Port:           "6379",
			Enabled:        false,
			FundamentalTTL: 12 * time.Hour,
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.Cache.Dir == "" {
		return fmt.Errorf("CACHE_DIR is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL_DAYS must be > 0")
	}
	if c.Fetcher.BatchChunkSize <= 0 {
		return fmt.Errorf("FETCH_BATCH_CHUNK_SIZE must be > 0")
	}
	if c.Fetcher.MaxRetries < 1 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be >= 1")
	}
	if c.Fetcher.BackoffFactor < 1 {
		return fmt.Errorf("FETCH_BACKOFF_FACTOR must be >= 1")
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("SCAN_WORKERS must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
