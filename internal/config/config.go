package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	Database    DatabaseConfig
	RedisURL    string

	Casdoor        CasdoorConfig
	KafkaBrokers   []string
	QuestionSource QuestionSourceConfig
	Evaluator      EvaluatorConfig
	Leave          LeaveConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type QuestionSourceConfig struct {
	GeminiAPIKey   string
	GeminiModel    string
	Timeout        time.Duration
	RequestsPerSec float64
}

type EvaluatorConfig struct {
	Backend           string // "process" or "judge0"
	Command           []string
	CaseTimeout       time.Duration
	QuestionTimeout   time.Duration
	SubmissionTimeout time.Duration
	MaxOutputBytes    int
	Judge0URL         string
	Judge0APIKey      string
}

type LeaveConfig struct {
	PassingThreshold  float64
	MCQCount          int
	CodingCount       int
	DefaultTopic      string
	DefaultDifficulty string
}

// LoadConfig reads .env (if present) and the process environment
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "leave_assessment"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		RedisURL: os.Getenv("REDIS_URL"),
		Casdoor: CasdoorConfig{
			Endpoint:     os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:     os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret: os.Getenv("CASDOOR_CLIENT_SECRET"),
			Cert:         loadCert(),
			Organization: os.Getenv("CASDOOR_ORGANIZATION"),
			Application:  os.Getenv("CASDOOR_APPLICATION"),
		},
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		QuestionSource: QuestionSourceConfig{
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:        getEnvDuration("QUESTION_SOURCE_TIMEOUT", 60*time.Second),
			RequestsPerSec: getEnvFloat("QUESTION_SOURCE_RPS", 2),
		},
		Evaluator: EvaluatorConfig{
			Backend:           getEnv("EVALUATOR_BACKEND", "process"),
			Command:           strings.Fields(getEnv("EVALUATOR_COMMAND", "node")),
			CaseTimeout:       getEnvDuration("EVALUATOR_CASE_TIMEOUT", 2*time.Second),
			QuestionTimeout:   getEnvDuration("EVALUATOR_QUESTION_TIMEOUT", 10*time.Second),
			SubmissionTimeout: getEnvDuration("EVALUATOR_SUBMISSION_TIMEOUT", 30*time.Second),
			MaxOutputBytes:    getEnvInt("EVALUATOR_MAX_OUTPUT_BYTES", 64*1024),
			Judge0URL:         os.Getenv("JUDGE0_URL"),
			Judge0APIKey:      os.Getenv("JUDGE0_API_KEY"),
		},
		Leave: LeaveConfig{
			PassingThreshold:  getEnvFloat("LEAVE_PASSING_THRESHOLD", 70),
			MCQCount:          getEnvInt("LEAVE_MCQ_COUNT", 10),
			CodingCount:       getEnvInt("LEAVE_CODING_COUNT", 2),
			DefaultTopic:      getEnv("LEAVE_DEFAULT_TOPIC", "General"),
			DefaultDifficulty: getEnv("LEAVE_DEFAULT_DIFFICULTY", "mixed"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns the postgres connection string
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	db := c.Database
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	if c.Leave.PassingThreshold < 0 || c.Leave.PassingThreshold > 100 {
		return fmt.Errorf("LEAVE_PASSING_THRESHOLD must be between 0 and 100, got %v", c.Leave.PassingThreshold)
	}
	if c.Leave.MCQCount < 1 || c.Leave.CodingCount < 1 {
		return fmt.Errorf("question counts must be positive")
	}
	switch c.Evaluator.Backend {
	case "process":
		if len(c.Evaluator.Command) == 0 {
			return fmt.Errorf("EVALUATOR_COMMAND is required for the process backend")
		}
	case "judge0":
		if c.Evaluator.Judge0URL == "" {
			return fmt.Errorf("JUDGE0_URL is required for the judge0 backend")
		}
	default:
		return fmt.Errorf("unknown EVALUATOR_BACKEND %q", c.Evaluator.Backend)
	}
	return nil
}

// loadCert prefers an inline certificate and falls back to a file path
func loadCert() string {
	if cert := os.Getenv("CASDOOR_CERT"); cert != "" {
		return cert
	}
	if path := os.Getenv("CASDOOR_CERT_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
