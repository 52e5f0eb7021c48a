package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StoreDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FetchMode        string
	ChromeBin        string
	UserAgent        string
	RequestTimeoutMs int
	RateLimitMs      int
	MaxRetries       int
	RetryBaseDelayMs int

	BatchSize int
	PageSize  int

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
	OpenAIAPIKey        string
	GeminiAPIKey        string

	URLsFile      string
	CSVOutputPath string
	RulesPath     string
	LogLevel      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "brew"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "brew123"),
		PostgresDB:       getEnv("POSTGRES_DB", "coffee_reviews"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SQLitePath: getEnv("SQLITE_PATH", "./data/reviews.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		FetchMode:        strings.ToLower(getEnv("FETCH_MODE", "http")),
		ChromeBin:        getEnv("CHROME_BIN", ""),
		UserAgent:        getEnv("USER_AGENT", "Mozilla/5.0 (compatible; BrewIntelligence/2.0)"),
		RequestTimeoutMs: getEnvInt("REQUEST_TIMEOUT_MS", 30000),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelayMs: getEnvInt("RETRY_BASE_DELAY_MS", 500),

		BatchSize: getEnvInt("BATCH_SIZE", 500),
		PageSize:  getEnvInt("PAGE_SIZE", 1000),

		EmbeddingProvider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", "none")),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 384),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),

		URLsFile:      getEnv("URLS_FILE", "./data/urls.txt"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
		RulesPath:     getEnv("RULES_PATH", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
