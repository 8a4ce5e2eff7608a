package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ScreenerConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultScreenerConfig
	v.SetDefault("screener.host", "0.0.0.0")
	v.SetDefault("screener.port", 8080)
	v.SetDefault("screener.health_port", 50051)
	v.SetDefault("screener.request_timeout", "30s")
	v.SetDefault("screener.database_url", "sqlite://medscreen.db")
	v.SetDefault("screener.rule_cache_ttl", "1h")

	// Bind environment variables with MS_ prefix
	v.SetEnvPrefix("MS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject credentials in config files
	// Database credentials belong in the environment, not tracked files
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ScreenerConfig{
		Host:           v.GetString("screener.host"),
		Port:           v.GetInt("screener.port"),
		HealthPort:     v.GetInt("screener.health_port"),
		RequestTimeout: v.GetDuration("screener.request_timeout"),
		DatabaseURL:    v.GetString("screener.database_url"),
		RuleCacheTTL:   v.GetDuration("screener.rule_cache_ttl"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges and positive durations.
func validateConfig(cfg *ScreenerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.HealthPort <= 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("health_port must be between 1 and 65535, got %d", cfg.HealthPort)
	}
	if cfg.HealthPort == cfg.Port {
		return fmt.Errorf("health_port must differ from port, both are %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if cfg.RuleCacheTTL <= 0 {
		return fmt.Errorf("rule_cache_ttl must be positive, got %v", cfg.RuleCacheTTL)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only credentials.
// A postgres URL with an inline password in a config file is the common
// leak path; the URL itself is fine via MS_SCREENER_DATABASE_URL.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if !v.InConfig("screener.database_url") {
		return nil
	}
	url := v.GetString("screener.database_url")
	if strings.HasPrefix(url, "postgres://") && strings.Contains(url, "@") {
		if creds := strings.SplitN(strings.TrimPrefix(url, "postgres://"), "@", 2)[0]; strings.Contains(creds, ":") {
			return fmt.Errorf("database passwords not allowed in config files (use MS_SCREENER_DATABASE_URL environment variable)")
		}
	}
	return nil
}
