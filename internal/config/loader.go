package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal YAML into config
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate configuration
	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

var anchorPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// validate checks configuration for errors
func (l *Loader) validate(cfg *Config) error {
	if len(cfg.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}

	seen := make(map[string]bool, len(cfg.Categories))
	for i, cat := range cfg.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category %d: name is required", i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category name: %s", cat.Name)
		}
		seen[cat.Name] = true
		if cat.Query == "" && cat.FeedURL == "" {
			return fmt.Errorf("category %s: either query or feed_url is required", cat.Name)
		}
		if cat.TTL < 0 {
			return fmt.Errorf("category %s: ttl must not be negative", cat.Name)
		}
		if cat.CadenceHours < 0 {
			return fmt.Errorf("category %s: cadence_hours must not be negative", cat.Name)
		}
	}

	if cfg.Quota.MonthlyCeiling <= 0 {
		return fmt.Errorf("quota monthly_ceiling must be positive")
	}
	if cfg.Quota.DailyCeiling <= 0 {
		return fmt.Errorf("quota daily_ceiling must be positive")
	}

	validBackends := map[string]bool{
		"file":   true,
		"redis":  true,
		"memory": true,
	}
	if !validBackends[cfg.Quota.Backend] {
		return fmt.Errorf("invalid quota backend: %s", cfg.Quota.Backend)
	}
	if cfg.Quota.Backend == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("quota backend redis requires redis.addr")
	}

	if cfg.Refresh.StartHour < 0 || cfg.Refresh.StartHour > 23 {
		return fmt.Errorf("refresh start_hour must be within 0-23")
	}
	if cfg.Refresh.EndHour < 0 || cfg.Refresh.EndHour > 23 {
		return fmt.Errorf("refresh end_hour must be within 0-23")
	}
	if cfg.Refresh.EndHour < cfg.Refresh.StartHour {
		return fmt.Errorf("refresh end_hour must not precede start_hour")
	}
	for _, a := range cfg.Refresh.Anchors {
		if !anchorPattern.MatchString(a) {
			return fmt.Errorf("invalid refresh anchor %q, expected HH:MM", a)
		}
	}

	return nil
}
