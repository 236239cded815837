package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends
const (
	LedgerSQL    = "sql"
	LedgerMemory = "memory"

	QuestionsSQL   = "sql"
	QuestionsMongo = "mongo"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseDriver string
	DatabaseURL    string
	LedgerBackend  string
	LedgerTimeout  time.Duration

	// Questions
	QuestionSource         string
	MongoURI               string
	MongoDatabase          string
	QuestionReloadInterval time.Duration
	PromptTTL              time.Duration

	// Redis (비어 있으면 단일 인스턴스 모드)
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// Leaderboard
	LeaderboardRefreshInterval time.Duration
	LeaderboardTTL             time.Duration
	LeaderboardSize            int

	// Rate limit
	RateLimitSweepInterval time.Duration
	PrivilegedUsers        []string

	// CORS
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                       getEnv("PORT", "8080"),
		Env:                        getEnv("ENV", "development"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:             getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		LedgerBackend:              getEnv("LEDGER_BACKEND", LedgerSQL),
		LedgerTimeout:              getDuration("LEDGER_TIMEOUT", 5*time.Second),
		QuestionSource:             getEnv("QUESTION_SOURCE", QuestionsSQL),
		MongoURI:                   getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:              getEnv("MONGO_DATABASE", "trivia"),
		QuestionReloadInterval:     getDuration("QUESTION_RELOAD_INTERVAL", 5*time.Minute),
		PromptTTL:                  getDuration("PROMPT_TTL", 10*time.Minute),
		RedisURL:                   getEnv("REDIS_URL", ""),
		JWTSecret:                  getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:              getDuration("JWT_EXPIRATION", 24*time.Hour),
		LeaderboardRefreshInterval: getDuration("LEADERBOARD_REFRESH_INTERVAL", 30*time.Second),
		LeaderboardTTL:             getDuration("LEADERBOARD_TTL", 30*time.Second),
		LeaderboardSize:            getInt("LEADERBOARD_SIZE", 100),
		RateLimitSweepInterval:     getDuration("RATELIMIT_SWEEP_INTERVAL", 10*time.Minute),
		PrivilegedUsers:            getList("PRIVILEGED_USERS", nil),
		CORSAllowedOrigins:         getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 설정 조합 검증
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerSQL, LedgerMemory:
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}

	switch c.QuestionSource {
	case QuestionsSQL, QuestionsMongo:
	default:
		return fmt.Errorf("unknown QUESTION_SOURCE %q", c.QuestionSource)
	}

	needsSQL := c.LedgerBackend == LedgerSQL || c.QuestionSource == QuestionsSQL
	if needsSQL && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the sql backend")
	}
	if c.QuestionSource == QuestionsMongo && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required when QUESTION_SOURCE=mongo")
	}
	if c.LeaderboardSize <= 0 {
		return fmt.Errorf("LEADERBOARD_SIZE must be positive")
	}
	return nil
}

// IsPrivileged reports whether userID is configured as an operator.
func (c *Config) IsPrivileged(userID string) bool {
	for _, id := range c.PrivilegedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

// getList 콤마 구분 목록
func getList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
