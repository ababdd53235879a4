// Package config layers gateway configuration from file, environment, and
// flags. Precedence: flag > environment > config file > default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ClientIDDefault     = "app_EMoamEEZ73f0CkXaXp7hrann"
	OAuthIssuerDefault  = "https://auth.openai.com"
	ResponsesURL        = "https://chatgpt.com/backend-api/codex/responses"
	OllamaVersionString = "0.12.10"

	envPrefix = "LLMGATE_"
)

// Duration is a time.Duration that YAML decodes from "90s" style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all server configuration.
type Config struct {
	Host                  string   `yaml:"host"`
	Port                  int      `yaml:"port"`
	Verbose               bool     `yaml:"verbose"`
	AccessToken           string   `yaml:"access_token"`
	ReasoningEffort       string   `yaml:"reasoning_effort"`
	ReasoningSummary      string   `yaml:"reasoning_summary"`
	ReasoningCompat       string   `yaml:"reasoning_compat"`
	ExposeReasoningModels bool     `yaml:"expose_reasoning_models"`
	DefaultWebSearch      bool     `yaml:"default_web_search"`
	BaseInstructions      string   `yaml:"base_instructions"`
	UpstreamURL           string   `yaml:"upstream_url"`
	UpstreamIdleTimeout   Duration `yaml:"upstream_idle_timeout"`
	LogLevel              string   `yaml:"log_level"`
	LogFile               string   `yaml:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:                "127.0.0.1",
		Port:                8000,
		ReasoningEffort:     "medium",
		ReasoningSummary:    "auto",
		ReasoningCompat:     "think-tags",
		UpstreamURL:         ResponsesURL,
		UpstreamIdleTimeout: Duration(90 * time.Second),
		LogLevel:            "info",
	}
}

// Load builds the config from the optional YAML file plus environment
// overrides. Flag overrides are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Host, "HOST")
	setInt(&c.Port, "PORT")
	setBool(&c.Verbose, "VERBOSE")
	setString(&c.AccessToken, "ACCESS_TOKEN")
	setString(&c.ReasoningEffort, "REASONING_EFFORT")
	setString(&c.ReasoningSummary, "REASONING_SUMMARY")
	setString(&c.ReasoningCompat, "REASONING_COMPAT")
	setBool(&c.ExposeReasoningModels, "EXPOSE_REASONING_MODELS")
	setBool(&c.DefaultWebSearch, "DEFAULT_WEB_SEARCH")
	setString(&c.BaseInstructions, "BASE_INSTRUCTIONS")
	setString(&c.UpstreamURL, "UPSTREAM_URL")
	setDuration(&c.UpstreamIdleTimeout, "UPSTREAM_IDLE_TIMEOUT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFile, "LOG_FILE")
}

// ClientID returns the OAuth client id from env or default.
func ClientID() string {
	if id := os.Getenv(envPrefix + "CLIENT_ID"); id != "" {
		return id
	}
	return ClientIDDefault
}

// OAuthIssuer returns the OAuth issuer URL.
func OAuthIssuer() string {
	if iss := os.Getenv(envPrefix + "ISSUER"); iss != "" {
		return iss
	}
	return OAuthIssuerDefault
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(envPrefix + key)))
	if v == "" {
		return
	}
	*dst = v == "1" || v == "true" || v == "yes" || v == "on"
}

func setDuration(dst *Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
