package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	OpenRouterAPIKey     string
	OpenRouterBaseURL    string
	OpenRouterModel      string
	SiteURL              string
	SiteName             string
	ResultDir            string
	ResultPathPrefix     string
	StorageBaseURL       string
	DatabaseURL          string
	ImageSourceAllowlist []string
	CORSAllowedOrigins   []string
	MaxUploadBytes       int64
	FetchTimeout         time.Duration
	UpstreamTimeout      time.Duration
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
	RateLimitPerMin      int
	DefaultLocale        string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// The upstream API key is not required here because it may come from the credential store.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		OpenRouterAPIKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "google/gemini-2.5-flash-image-preview"),
		SiteURL:            strings.TrimRight(getEnv("SITE_URL", "http://localhost:"+port), "/"),
		SiteName:           getEnv("SITE_NAME", "BouquetService"),
		ResultDir:          getEnv("RESULT_DIR", "static/results"),
		ResultPathPrefix:   "/" + strings.Trim(getEnv("RESULT_PATH_PREFIX", "/static/results"), "/"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 0)),
		FetchTimeout:       time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 10)),
		UpstreamTimeout:    time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 180)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 240)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
	}
	cfg.StorageBaseURL = strings.TrimRight(getEnv("STORAGE_BASE_URL", cfg.SiteURL+cfg.ResultPathPrefix), "/")

	allowlist, err := normalizeHosts(splitList(os.Getenv("IMAGE_SOURCE_HOST_ALLOWLIST")))
	if err != nil {
		return nil, err
	}
	cfg.ImageSourceAllowlist = allowlist

	if strings.TrimSpace(cfg.OpenRouterModel) == "" {
		return nil, fmt.Errorf("OPENROUTER_MODEL is required")
	}
	if strings.TrimSpace(cfg.ResultDir) == "" {
		return nil, fmt.Errorf("RESULT_DIR is required")
	}
	if _, err := url.ParseRequestURI(cfg.OpenRouterBaseURL); err != nil {
		return nil, fmt.Errorf("OPENROUTER_BASE_URL is invalid: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
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

// normalizeHosts lower-cases, de-duplicates and sorts allowlist entries. Entries may be
// bare hosts or full URLs.
func normalizeHosts(entries []string) ([]string, error) {
	seen := make(map[string]struct{}, len(entries))
	hosts := make([]string, 0, len(entries))
	for _, entry := range entries {
		host := entry
		if strings.Contains(entry, "://") {
			parsed, err := url.Parse(entry)
			if err != nil {
				return nil, fmt.Errorf("IMAGE_SOURCE_HOST_ALLOWLIST entry %q: %w", entry, err)
			}
			host = parsed.Hostname()
		}
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	if len(hosts) == 0 {
		return nil, nil
	}
	return hosts, nil
}
