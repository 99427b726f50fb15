// Package config loads the server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrMissingRequired = errors.New("missing required env var")

type Config struct {
	Addr            string
	DBPath          string
	ClientsDir      string
	RedisURL        string
	LoginURL        string
	RegisterURL     string
	LogLevel        logrus.Level
	PasswordMode    string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the SSO_* environment variables, applying defaults for the
// optional ones.
func Load() (*Config, error) {
	dbPath, err := readEnvVar("SSO_DB_PATH")
	if err != nil {
		return nil, err
	}
	clientsDir, err := readEnvVar("SSO_CLIENTS_DIR")
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(getEnvWithDefault("SSO_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid SSO_LOG_LEVEL: %w", err)
	}

	readTimeout, err := parseDurationWithDefault("SSO_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid SSO_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := parseDurationWithDefault("SSO_WRITE_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid SSO_WRITE_TIMEOUT: %w", err)
	}
	shutdownTimeout, err := parseDurationWithDefault("SSO_SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid SSO_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Addr:            getEnvWithDefault("SSO_ADDR", ":8080"),
		DBPath:          dbPath,
		ClientsDir:      clientsDir,
		RedisURL:        os.Getenv("SSO_REDIS_URL"),
		LoginURL:        os.Getenv("SSO_LOGIN_URL"),
		RegisterURL:     os.Getenv("SSO_REGISTER_URL"),
		LogLevel:        level,
		PasswordMode:    getEnvWithDefault("SSO_PASSWORD_MODE", "production"),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if (c.LoginURL == "") != (c.RegisterURL == "") {
		return errors.New("SSO_LOGIN_URL and SSO_REGISTER_URL must be set together")
	}
	switch c.PasswordMode {
	case "production", "testing":
	default:
		return fmt.Errorf("invalid SSO_PASSWORD_MODE %q", c.PasswordMode)
	}
	for name, d := range map[string]time.Duration{
		"SSO_READ_TIMEOUT":     c.ReadTimeout,
		"SSO_WRITE_TIMEOUT":    c.WriteTimeout,
		"SSO_SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// External reports whether hosted login and registration pages are
// configured.
func (c *Config) External() bool {
	return c.LoginURL != "" && c.RegisterURL != ""
}

func readEnvVar(name string) (string, error) {
	str, present := os.LookupEnv(name)
	if !present || str == "" {
		return "", fmt.Errorf("%w '%s'", ErrMissingRequired, name)
	}
	return str, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationWithDefault(key, defaultValue string) (time.Duration, error) {
	value := getEnvWithDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse duration %q: %w", value, err)
	}
	return duration, nil
}
