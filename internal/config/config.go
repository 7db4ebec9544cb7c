package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const ServiceName = "key-api"

type Config struct {
	Port              int
	KeyFile           string
	StaticDir         string
	LogLevel          string
	KeyTTL            time.Duration
	MetricsListenAddr string
	// ConfigFile is the optional YAML file the other fields were overlaid from.
	ConfigFile string
}

// fileConfig mirrors the environment variables for CONFIG_FILE.
type fileConfig struct {
	Port              string `yaml:"port"`
	KeyFile           string `yaml:"key_file"`
	StaticDir         string `yaml:"static_dir"`
	LogLevel          string `yaml:"log_level"`
	KeyTTL            string `yaml:"key_ttl"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
}

// Load reads configuration from the environment. If CONFIG_FILE names a YAML
// file its values replace the built-in defaults; environment variables still
// take precedence over both.
func Load() (*Config, error) {
	configFile := getEnv("CONFIG_FILE", "")

	var fc fileConfig
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	portStr := getEnv("PORT", orDefault(fc.Port, "3000"))
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
	}

	ttlStr := getEnv("KEY_TTL", orDefault(fc.KeyTTL, "24h"))
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid KEY_TTL %q: %w", ttlStr, err)
	}

	cfg := &Config{
		Port:              port,
		KeyFile:           getEnv("KEY_FILE", orDefault(fc.KeyFile, "key.json")),
		StaticDir:         getEnv("STATIC_DIR", orDefault(fc.StaticDir, "public")),
		LogLevel:          getEnv("LOG_LEVEL", orDefault(fc.LogLevel, "info")),
		KeyTTL:            ttl,
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", fc.MetricsListenAddr),
		ConfigFile:        configFile,
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.KeyFile == "" {
		problems = append(problems, "KEY_FILE must not be empty")
	}
	if c.KeyTTL <= 0 {
		problems = append(problems, "KEY_TTL must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ListenAddr returns the address the API server binds to.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
