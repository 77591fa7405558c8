package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Redis     RedisConfig      `json:"redis"`
	Limits    LimitsConfig     `json:"limits"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// LimitsConfig bounds uploads, questions and query execution. Zero values
// fall back to the defaults applied by Load.
type LimitsConfig struct {
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	MaxQuestionLen int   `json:"max_question_len"`
	MaxRows        int   `json:"max_rows"`
	MaxIterations  int   `json:"max_iterations"`
}

const (
	defaultPort           = 8000
	defaultMaxUploadBytes = 50 << 20
	defaultMaxQuestionLen = 1000
	defaultMaxRows        = 100
	defaultMaxIterations  = 10
)

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable references
// and fills in defaults for unset limits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Limits.MaxUploadBytes == 0 {
		c.Limits.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Limits.MaxQuestionLen == 0 {
		c.Limits.MaxQuestionLen = defaultMaxQuestionLen
	}
	if c.Limits.MaxRows == 0 {
		c.Limits.MaxRows = defaultMaxRows
	}
	if c.Limits.MaxIterations == 0 {
		c.Limits.MaxIterations = defaultMaxIterations
	}
}
