package sandbox

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yiancode/zsxq-sdk/sdk"
)

// Config holds the sandbox server configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Tokens lists the accepted authorization values. Empty accepts any
	// non-empty token.
	Tokens []string

	// SigningSecret must match the secret the clients sign with.
	SigningSecret string

	// MaxClockSkew bounds |now - x-timestamp|. Zero disables the check.
	MaxClockSkew time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MetricsPath string

	// EnableAdmin exposes the unsigned /_sandbox routes used to script
	// responses from outside the process.
	EnableAdmin bool
}

// DefaultConfig returns a config listening on localhost:8090 accepting any token
func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8090,
		SigningSecret:   sdk.DefaultSigningSecret,
		MaxClockSkew:    5 * time.Minute,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
		EnableAdmin:     true,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	cfg.Host = getEnvOrDefault("SANDBOX_HOST", cfg.Host)

	port, err := strconv.Atoi(getEnvOrDefault("SANDBOX_PORT", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("invalid SANDBOX_PORT: %w", err)
	}
	cfg.Port = port

	if tokens := os.Getenv("SANDBOX_TOKENS"); tokens != "" {
		for _, token := range strings.Split(tokens, ",") {
			if token = strings.TrimSpace(token); token != "" {
				cfg.Tokens = append(cfg.Tokens, token)
			}
		}
	}

	cfg.SigningSecret = getEnvOrDefault("ZSXQ_SIGNING_SECRET", cfg.SigningSecret)

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"SANDBOX_MAX_CLOCK_SKEW", &cfg.MaxClockSkew},
		{"SANDBOX_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SANDBOX_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		value := os.Getenv(d.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = parsed
	}

	cfg.MetricsPath = getEnvOrDefault("METRICS_PATH", cfg.MetricsPath)
	cfg.EnableAdmin = getEnvOrDefault("SANDBOX_ENABLE_ADMIN", "true") == "true"

	return cfg, nil
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
