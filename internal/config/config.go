package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Research  ResearchConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	ServiceName        string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	// Connection is empty when the archive is disabled.
	Connection string
}

// ResearchConfig holds the pipeline policy knobs.
type ResearchConfig struct {
	ToolTimeout         time.Duration
	ToolConcurrency     int
	ToolLatency         time.Duration
	RetryBudget         int
	RetryWait           time.Duration
	IdleTTL             time.Duration
	SweepInterval       time.Duration
	SubscriberBuffer    int
	CloseGrace          time.Duration
	MinCitations        int
	RequiredSourceTypes []string
	ArchiveTopic        string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type AuthConfig struct {
	JwtSecret string
	Required  bool
}

type TelemetryConfig struct {
	Enabled      bool
	OtlpEndpoint string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			ServiceName:        getEnv("SERVICE_NAME", "slingshot-research"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Research: ResearchConfig{
			ToolTimeout:         getEnvAsDuration("TOOL_TIMEOUT", 10*time.Second),
			ToolConcurrency:     getEnvAsInt("TOOL_CONCURRENCY", 4),
			ToolLatency:         getEnvAsDuration("TOOL_LATENCY", 300*time.Millisecond),
			RetryBudget:         getEnvAsInt("RETRY_BUDGET", 2),
			RetryWait:           getEnvAsDuration("RETRY_WAIT", 0),
			IdleTTL:             getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval:       getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			SubscriberBuffer:    getEnvAsInt("SUBSCRIBER_BUFFER", 64),
			CloseGrace:          getEnvAsDuration("WS_CLOSE_GRACE", 2*time.Second),
			MinCitations:        getEnvAsInt("MIN_CITATIONS", 3),
			RequiredSourceTypes: getEnvAsList("REQUIRED_SOURCE_TYPES", []string{"screener", "pdf"}),
			ArchiveTopic:        getEnv("ARCHIVE_TOPIC_NAME", "SESSION_FINALIZED"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
			Required:  getEnvAsBool("AUTH_REQUIRED", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OtlpEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("1500ms", "2s") or plain seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
