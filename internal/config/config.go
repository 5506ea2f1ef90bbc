package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RefreshAlways     = "always"
	RefreshNearExpiry = "near_expiry"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	Environment             string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	AuthURL             string
	AuthAnonKey         string
	AuthServiceRoleKey  string
	AuthProviderTimeout time.Duration

	SessionSecrets       []string
	SessionRefreshPolicy string
	SessionRefreshBuffer time.Duration
	DefaultRedirect      string
	AdminUserIDs         []string

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	LLMAPIKey       string
	LLMBaseURL      string
	LLMModel        string
	LLMSystemPrompt string
	LLMTimeout      time.Duration
	AIDailyLimit    int

	StateCacheTTL time.Duration
	LogLevel      string
	LogFormat     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", getEnv("NODE_ENV", "development"))

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		Environment:             strings.ToLower(env),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),

		AuthURL:             strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_URL")), "/"),
		AuthAnonKey:         strings.TrimSpace(os.Getenv("AUTH_ANON_KEY")),
		AuthServiceRoleKey:  strings.TrimSpace(os.Getenv("AUTH_SERVICE_ROLE_KEY")),
		AuthProviderTimeout: getDuration("AUTH_PROVIDER_TIMEOUT", 5*time.Second),

		SessionSecrets:       splitCSV(os.Getenv("SESSION_SECRETS")),
		SessionRefreshPolicy: strings.ToLower(getEnv("SESSION_REFRESH_POLICY", RefreshAlways)),
		SessionRefreshBuffer: getDuration("SESSION_REFRESH_BUFFER", 60*time.Second),
		DefaultRedirect:      getEnv("DEFAULT_REDIRECT", "/dashboard"),
		AdminUserIDs:         splitCSV(os.Getenv("ADMIN_USER_IDS")),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 120),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 20),

		LLMAPIKey:       strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		LLMBaseURL:      strings.TrimRight(getEnv("LLM_BASE_URL", "https://api.openai.com/v1"), "/"),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMSystemPrompt: getEnv("LLM_SYSTEM_PROMPT", defaultSystemPrompt),
		LLMTimeout:      getDuration("LLM_TIMEOUT", 30*time.Second),
		AIDailyLimit:    getInt("AI_DAILY_LIMIT", 3),

		StateCacheTTL: getDuration("STATE_CACHE_TTL", 5*time.Minute),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

const defaultSystemPrompt = "You are a gentle, thoughtful journaling companion. Reply to the entry " +
	"with a short, warm reflection that acknowledges the writer's mood and offers one open question. " +
	"Do not diagnose or give medical advice."

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.AuthURL == "" {
		return fmt.Errorf("AUTH_URL is required")
	}

	if c.AuthAnonKey == "" {
		return fmt.Errorf("AUTH_ANON_KEY is required")
	}

	if c.AuthProviderTimeout <= 0 {
		return fmt.Errorf("AUTH_PROVIDER_TIMEOUT must be positive")
	}

	if len(c.SessionSecrets) == 0 {
		return fmt.Errorf("SESSION_SECRETS is required")
	}

	for _, secret := range c.SessionSecrets {
		if len(secret) < 16 {
			return fmt.Errorf("SESSION_SECRETS entries must be at least 16 characters")
		}
	}

	if c.SessionRefreshPolicy != RefreshAlways && c.SessionRefreshPolicy != RefreshNearExpiry {
		return fmt.Errorf("SESSION_REFRESH_POLICY must be %q or %q", RefreshAlways, RefreshNearExpiry)
	}

	if c.SessionRefreshBuffer < 0 {
		return fmt.Errorf("SESSION_REFRESH_BUFFER cannot be negative")
	}

	if !strings.HasPrefix(c.DefaultRedirect, "/") {
		return fmt.Errorf("DEFAULT_REDIRECT must be a local path")
	}

	if c.AIDailyLimit < 0 {
		return fmt.Errorf("AI_DAILY_LIMIT cannot be negative")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MAX_CONNS/DB_MIN_CONNS are inconsistent")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
