package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"npimatch/internal/directory"
	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/cascade"
	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
	platformstrings "npimatch/pkg/platform/strings"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the complete service configuration.
type Config struct {
	Server     Server      `yaml:"server"`
	Directory  Directory   `yaml:"directory"`
	Cache      Cache       `yaml:"cache"`
	Redis      RedisConfig `yaml:"redis"`
	Resolution Resolution  `yaml:"resolution"`
	LogLevel   string      `yaml:"log_level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RateLimit is the number of resolve requests a client may send per
	// RateLimitWindow. Zero disables limiting.
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// Directory configures the registry client.
type Directory struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size"`
	// BreakerThreshold is the number of consecutive retryable failures that
	// open the circuit. Zero disables the breaker.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// Cache configures the directory response cache.
type Cache struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

// RedisConfig configures the Redis connection used by the redis cache
// backend.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Resolution is the batch configuration surface.
type Resolution struct {
	Jurisdictions         []string `yaml:"jurisdictions"`
	PreferredJurisdiction string   `yaml:"preferred_jurisdiction"`
	MaxStrictness         string   `yaml:"max_strictness"`
	Limit                 int      `yaml:"per_identity_limit"`
	FetchCap              int      `yaml:"fetch_cap"`
	Concurrency           int      `yaml:"concurrency"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       60,
			RateLimitWindow: time.Minute,
		},
		Directory: Directory{
			URL:      directory.DefaultBaseURL,
			Timeout:  10 * time.Second,
			PageSize: directory.MaxPageSize,

			BreakerThreshold: 10,
			BreakerCooldown:  30 * time.Second,
		},
		Cache: Cache{
			Backend: CacheMemory,
			TTL:     5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Resolution: Resolution{
			MaxStrictness: models.MatchLevelLimitedPotential.String(),
			Limit:         cascade.DefaultLimit,
			FetchCap:      cascade.DefaultFetchCap,
			Concurrency:   batch.DefaultConcurrency,
		},
		LogLevel: "info",
	}
}

// FromEnv overlays environment variables on the defaults so main stays lean.
func FromEnv() (Config, error) {
	return applyEnv(Default(), os.Getenv)
}

// Load overlays a YAML file on the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, dErrors.Wrap(err, dErrors.CodeValidation, "invalid config file "+path)
	}
	return cfg, nil
}

func applyEnv(cfg Config, getenv func(string) string) (Config, error) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var err error
	setInt := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = dErrors.Wrap(perr, dErrors.CodeValidation, key+" must be an integer")
			return
		}
		*dst = n
	}
	setDuration := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" || err != nil {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = dErrors.Wrap(perr, dErrors.CodeValidation, key+" must be a duration")
			return
		}
		*dst = d
	}

	setString("NPIMATCH_ADDR", &cfg.Server.Addr)
	setInt("NPIMATCH_RATE_LIMIT", &cfg.Server.RateLimit)
	setDuration("NPIMATCH_RATE_LIMIT_WINDOW", &cfg.Server.RateLimitWindow)
	setString("NPIMATCH_DIRECTORY_URL", &cfg.Directory.URL)
	setDuration("NPIMATCH_DIRECTORY_TIMEOUT", &cfg.Directory.Timeout)
	setInt("NPIMATCH_DIRECTORY_BREAKER_THRESHOLD", &cfg.Directory.BreakerThreshold)
	setDuration("NPIMATCH_DIRECTORY_BREAKER_COOLDOWN", &cfg.Directory.BreakerCooldown)
	if v := getenv("NPIMATCH_JURISDICTIONS"); v != "" {
		cfg.Resolution.Jurisdictions = platformstrings.SplitList(v)
	}
	setString("NPIMATCH_PREFERRED_JURISDICTION", &cfg.Resolution.PreferredJurisdiction)
	setString("NPIMATCH_MAX_STRICTNESS", &cfg.Resolution.MaxStrictness)
	setInt("NPIMATCH_LIMIT", &cfg.Resolution.Limit)
	setInt("NPIMATCH_CONCURRENCY", &cfg.Resolution.Concurrency)
	setDuration("NPIMATCH_CACHE_TTL", &cfg.Cache.TTL)
	setString("NPIMATCH_CACHE_BACKEND", &cfg.Cache.Backend)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("LOG_LEVEL", &cfg.LogLevel)
	return cfg, err
}

// Validate rejects configurations before any batch runs.
func (c Config) Validate() error {
	if c.Directory.URL == "" {
		return dErrors.New(dErrors.CodeValidation, "directory url is required")
	}
	if c.Directory.Timeout <= 0 {
		return dErrors.New(dErrors.CodeValidation, "directory timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return dErrors.New(dErrors.CodeValidation, "rate limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow <= 0 {
		return dErrors.New(dErrors.CodeValidation, "rate limit window must be positive")
	}
	if c.Directory.BreakerThreshold < 0 {
		return dErrors.New(dErrors.CodeValidation, "breaker threshold must not be negative")
	}
	backend := strings.ToLower(c.Cache.Backend)
	switch backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Redis.URL == "" {
			return dErrors.New(dErrors.CodeValidation, "redis cache backend requires REDIS_URL")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}
	if backend != CacheNone && c.Cache.TTL <= 0 {
		return dErrors.New(dErrors.CodeValidation, "cache ttl must be positive")
	}
	if c.Resolution.Concurrency <= 0 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("concurrency must be positive, got %d", c.Resolution.Concurrency))
	}
	_, err := c.Resolution.CascadeConfig()
	return err
}

// CascadeConfig converts and validates the resolution settings.
func (r Resolution) CascadeConfig() (cascade.Config, error) {
	level, err := models.ParseMatchLevel(r.MaxStrictness)
	if err != nil {
		return cascade.Config{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid max_strictness")
	}
	cfg := cascade.Config{
		Jurisdictions:         r.Jurisdictions,
		PreferredJurisdiction: r.PreferredJurisdiction,
		MaxStrictness:         level,
		Limit:                 r.Limit,
		FetchCap:              r.FetchCap,
	}.Normalized()
	if err := cfg.Validate(); err != nil {
		return cascade.Config{}, err
	}
	return cfg, nil
}
