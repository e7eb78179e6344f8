package config

import "time"

// Config is the root configuration for the newsdesk service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Quota      QuotaConfig      `yaml:"quota"`
	Cache      CacheConfig      `yaml:"cache"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Redis      RedisConfig      `yaml:"redis"`
	Categories []CategoryConfig `yaml:"categories"`
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string            `yaml:"level"`
	Output   string            `yaml:"output"`
	Rotation LogRotationConfig `yaml:"rotation"`
}

// LogRotationConfig defines log file rotation settings (powered by lumberjack).
type LogRotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // max megabytes before rotation (default 100)
	MaxBackups int  `yaml:"max_backups"` // old rotated files to keep (default 3)
	MaxAge     int  `yaml:"max_age"`     // days to retain old files (default 28)
	Compress   bool `yaml:"compress"`    // gzip rotated files
}

// QuotaConfig bounds upstream API spend per accounting window.
type QuotaConfig struct {
	MonthlyCeiling int    `yaml:"monthly_ceiling"` // default 250
	DailyCeiling   int    `yaml:"daily_ceiling"`   // default 8
	CountFailures  bool   `yaml:"count_failures"`  // count failed fetches against the budget
	Backend        string `yaml:"backend"`         // file, redis or memory (default file)
	StatePath      string `yaml:"state_path"`      // file backend: path to the state file
}

// CacheConfig defines cache-wide settings.
type CacheConfig struct {
	MaxCategories int           `yaml:"max_categories"` // default 64
	DefaultTTL    time.Duration `yaml:"default_ttl"`    // default 180m
}

// RefreshConfig drives the proactive background refresh loop.
type RefreshConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`   // tick interval (default 5m)
	StartHour int           `yaml:"start_hour"` // active window start, inclusive (default 9)
	EndHour   int           `yaml:"end_hour"`   // active window end, inclusive (default 17)
	Anchors   []string      `yaml:"anchors"`    // daily anchor times, "HH:MM" (default 09:00, 13:00, 17:00)
}

// UpstreamConfig defines the third-party news provider.
type UpstreamConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`     // per-fetch timeout (default 8s)
	MaxRetries   uint64        `yaml:"max_retries"` // retries inside one fetch (default 2)
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig defines circuit breaker settings for the upstream client.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"` // consecutive failures before opening (default 5)
	OpenTimeout time.Duration `yaml:"open_timeout"` // open state duration (default 60s)
}

// RedisConfig defines the optional Redis connection for quota persistence.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CategoryConfig defines one logical dataset with its own freshness and cadence.
type CategoryConfig struct {
	Name         string        `yaml:"name"`
	Query        string        `yaml:"query"`         // upstream search query
	FeedURL      string        `yaml:"feed_url"`      // RSS source, used instead of query when set
	TTL          time.Duration `yaml:"ttl"`           // 0 means cache.default_ttl
	CadenceHours int           `yaml:"cadence_hours"` // refresh only when hour%N == 0 (default 1)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Quota: QuotaConfig{
			MonthlyCeiling: 250,
			DailyCeiling:   8,
			Backend:        "file",
			StatePath:      "newsdesk-quota.json",
		},
		Cache: CacheConfig{
			MaxCategories: 64,
			DefaultTTL:    180 * time.Minute,
		},
		Refresh: RefreshConfig{
			Enabled:   true,
			Interval:  5 * time.Minute,
			StartHour: 9,
			EndHour:   17,
			Anchors:   []string{"09:00", "13:00", "17:00"},
		},
		Upstream: UpstreamConfig{
			Timeout:    8 * time.Second,
			MaxRetries: 2,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 60 * time.Second,
			},
		},
	}
}
