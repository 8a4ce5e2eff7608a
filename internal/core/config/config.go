// Package config provides configuration management for medscreen services.
package config

import (
	"time"
)

// ScreenerConfig holds configuration for the HTTP screening service.
type ScreenerConfig struct {
	Host           string
	Port           int
	HealthPort     int
	RequestTimeout time.Duration
	DatabaseURL    string
	RuleCacheTTL   time.Duration
}

// DefaultScreenerConfig returns configuration with default values.
func DefaultScreenerConfig() *ScreenerConfig {
	return &ScreenerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		HealthPort:     50051,
		RequestTimeout: 30 * time.Second,
		DatabaseURL:    "sqlite://medscreen.db",
		RuleCacheTTL:   time.Hour,
	}
}
