package infra

import (
	"testing"
	"time"
)

func clearComfyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "COMFY_BASE_URL", "COMFY_PUBLIC_BASE_URL", "COMFY_POLL_INTERVAL",
		"COMFY_POLL_ATTEMPTS", "COMFY_REQUEST_TIMEOUT", "SESSION_TTL", "CORS_ALLOWED_ORIGINS",
		"DOWNLOAD_DIR", "DEFAULT_LOCALE", "RATE_LIMIT_PER_MINUTE", "HTTP_READ_TIMEOUT_SECONDS",
		"HTTP_WRITE_TIMEOUT_SECONDS", "HTTP_IDLE_TIMEOUT_SECONDS", "TRUST_PROXY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	clearComfyEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ComfyBaseURL != DefaultComfyBaseURL {
		t.Fatalf("ComfyBaseURL mismatch: got %q want %q", cfg.ComfyBaseURL, DefaultComfyBaseURL)
	}
	if cfg.ComfyPublicBaseURL != DevProxyPath {
		t.Fatalf("ComfyPublicBaseURL mismatch: got %q want %q", cfg.ComfyPublicBaseURL, DevProxyPath)
	}
	if !cfg.UsesDevProxy() {
		t.Fatalf("expected development config to use the proxy path")
	}
	if cfg.ComfyPollInterval != time.Second || cfg.ComfyPollAttempts != 60 {
		t.Fatalf("poll defaults mismatch: %s x %d", cfg.ComfyPollInterval, cfg.ComfyPollAttempts)
	}
	if cfg.ComfyRequestTimeout != 0 {
		t.Fatalf("expected no submission timeout by default, got %s", cfg.ComfyRequestTimeout)
	}
}

func TestLoadConfigProductionUsesDirectBase(t *testing.T) {
	clearComfyEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("COMFY_BASE_URL", "http://comfy.internal:8188/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ComfyBaseURL != "http://comfy.internal:8188" {
		t.Fatalf("ComfyBaseURL mismatch: %q", cfg.ComfyBaseURL)
	}
	if cfg.ComfyPublicBaseURL != cfg.ComfyBaseURL {
		t.Fatalf("ComfyPublicBaseURL = %q, want %q", cfg.ComfyPublicBaseURL, cfg.ComfyBaseURL)
	}
	if cfg.UsesDevProxy() {
		t.Fatalf("production config must not use the proxy path")
	}
}

func TestLoadConfigParsesDurationsAndLists(t *testing.T) {
	clearComfyEnv(t)
	t.Setenv("COMFY_POLL_INTERVAL", "250ms")
	t.Setenv("COMFY_REQUEST_TIMEOUT", "20")
	t.Setenv("COMFY_POLL_ATTEMPTS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://studio.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ComfyPollInterval != 250*time.Millisecond {
		t.Fatalf("ComfyPollInterval = %s", cfg.ComfyPollInterval)
	}
	if cfg.ComfyRequestTimeout != 20*time.Second {
		t.Fatalf("ComfyRequestTimeout = %s", cfg.ComfyRequestTimeout)
	}
	if cfg.ComfyPollAttempts != 5 {
		t.Fatalf("ComfyPollAttempts = %d", cfg.ComfyPollAttempts)
	}
	expected := []string{"http://localhost:5173", "https://studio.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "relative base", key: "COMFY_BASE_URL", val: "/comfy"},
		{name: "zero attempts", key: "COMFY_POLL_ATTEMPTS", val: "0"},
		{name: "non-numeric attempts", key: "COMFY_POLL_ATTEMPTS", val: "abc"},
		{name: "non-numeric rate limit", key: "RATE_LIMIT_PER_MINUTE", val: "lots"},
		{name: "non-numeric read timeout", key: "HTTP_READ_TIMEOUT_SECONDS", val: "15s"},
		{name: "bad trust proxy", key: "TRUST_PROXY", val: "maybe"},
		{name: "bad interval", key: "COMFY_POLL_INTERVAL", val: "soon"},
		{name: "negative interval", key: "COMFY_POLL_INTERVAL", val: "-1s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearComfyEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}
