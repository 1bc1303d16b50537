package config

import (
	"log"
	"os"
	"strconv"

	"transcript-review-be/internal/constant"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Review   ReviewConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type ReviewConfig struct {
	SessionTTLMinutes    int // idle sessions expire after this
	SweepIntervalMinutes int
}

type APIKeys struct {
	SummaryTopic string // Conversation summary refresh topic
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Review: ReviewConfig{
			SessionTTLMinutes:    getEnvAsInt("REVIEW_SESSION_TTL_MINUTES", 120),
			SweepIntervalMinutes: getEnvAsInt("REVIEW_SESSION_SWEEP_MINUTES", 10),
		},
		Keys: APIKeys{
			SummaryTopic: getEnv("REFRESH_SUMMARY_TOPIC_NAME", constant.DefaultSummaryRefreshTopic),
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
