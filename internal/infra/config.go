package infra

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ProviderConfig holds the settings of one try-on provider.
type ProviderConfig struct {
	BaseURL string
	Model   string
	Token   string
	// StockModels maps "", "male" and "female" to default subject image URLs.
	StockModels map[string]string
	// InlineRemote makes the adapter fetch image URLs and send data URIs.
	InlineRemote bool
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	LogLevel           string
	DefaultProvider    string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	UpstreamTimeout    time.Duration
	RateLimitPerMin    int
	MaxUploadBytes     int64
	PollInterval       time.Duration
	PollMaxAttempts    int
	ReplicateWait      int
	Replicate          ProviderConfig
	Fashn              ProviderConfig
	Custom             ProviderConfig
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Missing provider tokens are not an error here; they fail the individual call instead.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		DefaultProvider:    strings.ToLower(getEnv("DEFAULT_PROVIDER", "fashn")),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 330)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		UpstreamTimeout:    time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		PollInterval:       time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 10000)),
		PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 30),
		ReplicateWait:      getEnvInt("REPLICATE_WAIT_SECONDS", 0),
		Replicate: ProviderConfig{
			BaseURL:     getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
			Model:       os.Getenv("REPLICATE_MODEL_VERSION"),
			Token:       strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
			StockModels: stockModels("REPLICATE"),
		},
		Fashn: ProviderConfig{
			BaseURL:      getEnv("FASHN_BASE_URL", "https://api.fashn.ai"),
			Model:        getEnv("FASHN_MODEL_NAME", "tryon-v1.6"),
			Token:        strings.TrimSpace(os.Getenv("FASHN_API_KEY")),
			StockModels:  stockModels("FASHN"),
			InlineRemote: getEnvBool("FASHN_INLINE_REMOTE_IMAGES", false),
		},
		Custom: ProviderConfig{
			BaseURL:     os.Getenv("CUSTOM_BASE_URL"),
			Model:       os.Getenv("CUSTOM_MODEL_NAME"),
			Token:       strings.TrimSpace(os.Getenv("CUSTOM_API_KEY")),
			StockModels: stockModels("CUSTOM"),
		},
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	return cfg, nil
}

// ProviderTokens returns the bearer token configured for each provider.
func (c *Config) ProviderTokens() map[string]string {
	return map[string]string{
		"replicate": c.Replicate.Token,
		"fashn":     c.Fashn.Token,
		"custom":    c.Custom.Token,
	}
}

// stockModels reads <PREFIX>_MODEL_IMAGE_URL[_MALE|_FEMALE], falling back to
// the shared MODEL_IMAGE_URL[_MALE|_FEMALE] variables.
func stockModels(prefix string) map[string]string {
	out := map[string]string{}
	for key, suffix := range map[string]string{"": "", "male": "_MALE", "female": "_FEMALE"} {
		v := getEnv(prefix+"_MODEL_IMAGE_URL"+suffix, os.Getenv("MODEL_IMAGE_URL"+suffix))
		if v = strings.TrimSpace(v); v != "" {
			out[key] = v
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	sort.Strings(out)
	return out
}
