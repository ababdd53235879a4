package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Host != "127.0.0.1" || cfg.Port != 8000 {
		t.Errorf("listen defaults: %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.ReasoningEffort != "medium" || cfg.ReasoningSummary != "auto" || cfg.ReasoningCompat != "think-tags" {
		t.Errorf("reasoning defaults: %+v", cfg)
	}
	if cfg.UpstreamURL != ResponsesURL {
		t.Errorf("upstream url: %q", cfg.UpstreamURL)
	}
	if cfg.UpstreamIdleTimeout.Std() != 90*time.Second {
		t.Errorf("idle timeout: %v", cfg.UpstreamIdleTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
host: 0.0.0.0
port: 9001
reasoning_effort: high
expose_reasoning_models: true
upstream_idle_timeout: 2m
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 9001 {
		t.Errorf("listen: %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.ReasoningEffort != "high" || !cfg.ExposeReasoningModels {
		t.Errorf("overrides: %+v", cfg)
	}
	if cfg.UpstreamIdleTimeout.Std() != 2*time.Minute {
		t.Errorf("duration: %v", cfg.UpstreamIdleTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.ReasoningCompat != "think-tags" {
		t.Errorf("compat default lost: %q", cfg.ReasoningCompat)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9001\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLMGATE_PORT", "9002")
	t.Setenv("LLMGATE_DEFAULT_WEB_SEARCH", "true")
	t.Setenv("LLMGATE_UPSTREAM_IDLE_TIMEOUT", "45s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9002 {
		t.Errorf("env must beat the file: %d", cfg.Port)
	}
	if !cfg.DefaultWebSearch {
		t.Error("bool env ignored")
	}
	if cfg.UpstreamIdleTimeout.Std() != 45*time.Second {
		t.Errorf("duration env: %v", cfg.UpstreamIdleTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
	if _, err := Load(""); err != nil {
		t.Errorf("empty path must fall back to defaults, got %v", err)
	}
}

func TestOAuthEndpoints(t *testing.T) {
	t.Setenv("LLMGATE_ISSUER", "")
	t.Setenv("LLMGATE_CLIENT_ID", "")
	if ClientID() != ClientIDDefault {
		t.Errorf("client id: %q", ClientID())
	}
	if OAuthIssuer() != OAuthIssuerDefault {
		t.Errorf("issuer: %q", OAuthIssuer())
	}

	t.Setenv("LLMGATE_ISSUER", "https://idp.example")
	if OAuthIssuer() != "https://idp.example" {
		t.Errorf("issuer env: %q", OAuthIssuer())
	}
	t.Setenv("LLMGATE_CLIENT_ID", "app_custom")
	if ClientID() != "app_custom" {
		t.Errorf("client id env: %q", ClientID())
	}
}
