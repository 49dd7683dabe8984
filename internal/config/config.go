package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const AppName = "linkchat"

type Config struct {
	Port                   string
	StoreDriver            string
	PostgresURL            string
	SQLitePath             string
	ConversationCollection string
	RateLimitCollection    string
	StoreTimeout           time.Duration
	LLMProvider            string
	LLMModel               string
	LLMBaseURL             string
	GroqAPIKey             string
	OpenAIAPIKey           string
	OpenRouterAPIKey       string
	AnthropicAPIKey        string
	LLMTemperature         float64
	LLMMaxTokens           int
	LLMTimeout             time.Duration
	ScrapeMinStaticChars   int
	ScrapeMaxContentChars  int
	ScrapeFetchTimeout     time.Duration
	ScrapeRenderTimeout    time.Duration
	ScrapeRenderEnabled    bool
	ScrapeConcurrency      int
	ScrapeUserAgent        string
	ChromePath             string
	ChromeNoSandbox        bool
	RateLimitWindow        time.Duration
	RateLimitMaxRequests   int
	RateLimitRetention     time.Duration
	RateLimitSweepInterval time.Duration
	RateLimitExemptPrefix  []string
	LogLevel               string
	LogFormat              string
}

// Load reads the configuration from the environment. A .env file in the
// working directory and the YAML file named by LINKCHAT_CONFIG fill in keys
// the environment does not set, in that order.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path := os.Getenv("LINKCHAT_CONFIG"); path != "" {
		values, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		applyDefaults(values)
	}

	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		Port:                   getEnv("PORT", "8080"),
		StoreDriver:            strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		PostgresURL:            postgresURL,
		SQLitePath:             getEnv("SQLITE_PATH", DefaultSQLitePath()),
		ConversationCollection: getEnv("CONVERSATION_COLLECTION", "conversations"),
		RateLimitCollection:    getEnv("RATELIMIT_COLLECTION", "ratelimits"),
		StoreTimeout:           getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		LLMProvider:            strings.ToLower(getEnv("LLM_PROVIDER", "groq")),
		LLMModel:               getEnv("LLM_MODEL", "mixtral-8x7b-32768"),
		LLMBaseURL:             getEnv("LLM_BASE_URL", ""),
		GroqAPIKey:             getEnv("GROQ_API_KEY", ""),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey:       getEnv("OPENROUTER_API_KEY", ""),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		LLMTemperature:         getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:           getEnvInt("LLM_MAX_TOKENS", 4096),
		LLMTimeout:             getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		ScrapeMinStaticChars:   getEnvInt("SCRAPE_MIN_STATIC_CHARS", 100),
		ScrapeMaxContentChars:  getEnvInt("SCRAPE_MAX_CONTENT_CHARS", 8000),
		ScrapeFetchTimeout:     getEnvDuration("SCRAPE_FETCH_TIMEOUT", 15*time.Second),
		ScrapeRenderTimeout:    getEnvDuration("SCRAPE_RENDER_TIMEOUT", 30*time.Second),
		ScrapeRenderEnabled:    getEnvBool("SCRAPE_RENDER_ENABLED", true),
		ScrapeConcurrency:      getEnvInt("SCRAPE_CONCURRENCY", 4),
		ScrapeUserAgent:        getEnv("SCRAPE_USER_AGENT", "linkchat/1.0"),
		ChromePath:             getEnv("CHROME_PATH", ""),
		ChromeNoSandbox:        getEnvBool("CHROME_NO_SANDBOX", false),
		RateLimitWindow:        getEnvDuration("RATE_LIMIT_WINDOW", 10*time.Second),
		RateLimitMaxRequests:   getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitRetention:     getEnvDuration("RATE_LIMIT_RETENTION", time.Hour),
		RateLimitSweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		RateLimitExemptPrefix:  getEnvList("RATE_LIMIT_EXEMPT_PREFIXES", []string{"/static/", "/favicon.ico", "/health"}),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
	}, nil
}

// DefaultSQLitePath is the database file under the XDG data directory.
func DefaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, AppName, AppName+".db")
}

// applyDefaults exports values for keys that are not already set, the same
// way godotenv treats a .env file.
func applyDefaults(values map[string]string) {
	for key, value := range values {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("10s") and bare integers as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "linkchat")
	password := getEnv("POSTGRES_PASSWORD", "linkchat")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "linkchat")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
