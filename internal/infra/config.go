package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultComfyBaseURL is the rendering backend used when COMFY_BASE_URL is unset.
	DefaultComfyBaseURL = "http://208.115.102.98:8188"
	// DevProxyPath is the public prefix the browser uses in development; the server proxies it to the backend.
	DevProxyPath = "/api"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	ComfyBaseURL        string
	ComfyPublicBaseURL  string
	ComfyPollInterval   time.Duration
	ComfyPollAttempts   int
	ComfyRequestTimeout time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
	CORSAllowedOrigins  []string
	SessionSecret       string
	SessionTTL          time.Duration
	GeoIPDBPath         string
	DefaultLocale       string
	DownloadDir         string
	// TrustProxy lets X-Forwarded-For and X-Real-IP replace the remote address.
	TrustProxy bool
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// UsesDevProxy reports whether the browser reaches the backend through the local proxy path.
func (c *Config) UsesDevProxy() bool {
	return c != nil && strings.HasPrefix(c.ComfyPublicBaseURL, "/")
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	base := strings.TrimRight(getEnv("COMFY_BASE_URL", DefaultComfyBaseURL), "/")

	publicDefault := base
	if appEnv == "development" {
		publicDefault = DevProxyPath
	}

	interval, err := getEnvDuration("COMFY_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvDuration("COMFY_REQUEST_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := getEnvDuration("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	trustProxy, err := getEnvBool("TRUST_PROXY", false)
	if err != nil {
		return nil, err
	}

	ints := map[string]int{
		"COMFY_POLL_ATTEMPTS":        60,
		"HTTP_READ_TIMEOUT_SECONDS":  15,
		"HTTP_WRITE_TIMEOUT_SECONDS": 30,
		"HTTP_IDLE_TIMEOUT_SECONDS":  60,
		"RATE_LIMIT_PER_MINUTE":      30,
	}
	for key, fallback := range ints {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			return nil, err
		}
		ints[key] = v
	}

	cfg := &Config{
		AppEnv:              appEnv,
		Port:                getEnv("PORT", "8080"),
		ComfyBaseURL:        base,
		ComfyPublicBaseURL:  strings.TrimRight(getEnv("COMFY_PUBLIC_BASE_URL", publicDefault), "/"),
		ComfyPollInterval:   interval,
		ComfyPollAttempts:   ints["COMFY_POLL_ATTEMPTS"],
		ComfyRequestTimeout: requestTimeout,
		HTTPReadTimeout:     time.Second * time.Duration(ints["HTTP_READ_TIMEOUT_SECONDS"]),
		HTTPWriteTimeout:    time.Second * time.Duration(ints["HTTP_WRITE_TIMEOUT_SECONDS"]),
		HTTPIdleTimeout:     time.Second * time.Duration(ints["HTTP_IDLE_TIMEOUT_SECONDS"]),
		RateLimitPerMin:     ints["RATE_LIMIT_PER_MINUTE"],
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		SessionTTL:          sessionTTL,
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:       strings.ToLower(getEnv("DEFAULT_LOCALE", "en")),
		DownloadDir:         strings.TrimSpace(os.Getenv("DOWNLOAD_DIR")),
		TrustProxy:          trustProxy,
	}

	if parsed, err := url.Parse(cfg.ComfyBaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("COMFY_BASE_URL must be an absolute url, got %q", cfg.ComfyBaseURL)
	}
	if cfg.ComfyPublicBaseURL == "" {
		return nil, fmt.Errorf("COMFY_PUBLIC_BASE_URL must not be empty")
	}
	if cfg.ComfyPollAttempts <= 0 {
		return nil, fmt.Errorf("COMFY_POLL_ATTEMPTS must be positive")
	}
	if cfg.ComfyPollInterval <= 0 {
		return nil, fmt.Errorf("COMFY_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

// getEnvDuration accepts Go duration strings ("1s", "500ms") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
