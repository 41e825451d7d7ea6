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
	App      AppConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Agents   AgentsConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ImagesDir          string
}

type DatabaseConfig struct {
	Connection string
}

type PipelineConfig struct {
	// OverallDeadline bounds one full pipeline run; exceeding it forces
	// finalization with whatever stages completed.
	OverallDeadline time.Duration
	// RetrievalTimeBucket bounds how stale cached market-data retrieval
	// may get; the bucket is part of the retrieval fingerprint.
	RetrievalTimeBucket time.Duration
	// CacheProvider selects the result cache backend: "redis" or "memory".
	CacheProvider string
	EventTopic    string
}

// StageConfig carries one stage's endpoint and policy knobs.
type StageConfig struct {
	URL       string
	Timeout   time.Duration
	Retries   int
	Cacheable bool
	CacheTTL  time.Duration
}

type AgentsConfig struct {
	Intention StageConfig
	Retriever StageConfig
	Reason    StageConfig
	Writer    StageConfig
	Designer  StageConfig
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			ImagesDir:          getEnv("IMAGES_DIR", "images"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Pipeline: PipelineConfig{
			OverallDeadline:     getEnvAsDuration("PIPELINE_DEADLINE_SECONDS", 150*time.Second),
			RetrievalTimeBucket: getEnvAsDuration("RETRIEVAL_TIME_BUCKET_SECONDS", 5*time.Minute),
			CacheProvider:       getEnv("CACHE_PROVIDER", "redis"),
			EventTopic:          getEnv("PIPELINE_EVENT_TOPIC", "PIPELINE_EVENTS"),
		},
		Agents: AgentsConfig{
			Intention: loadStage("INTENTION", "http://localhost:8001", 10*time.Second, true, time.Hour),
			Retriever: loadStage("RETRIEVER", "http://localhost:8002", 15*time.Second, true, 5*time.Minute),
			Reason:    loadStage("REASON", "http://localhost:8003", 45*time.Second, false, 0),
			Writer:    loadStage("WRITER", "http://localhost:8004", 45*time.Second, false, 0),
			Designer:  loadStage("DESIGNER", "http://localhost:8005", 30*time.Second, true, time.Hour),
		},
	}
}

func loadStage(prefix, defaultURL string, defaultTimeout time.Duration, defaultCacheable bool, defaultTTL time.Duration) StageConfig {
	return StageConfig{
		URL:       getEnv(prefix+"_AGENT_URL", defaultURL),
		Timeout:   getEnvAsDuration(prefix+"_TIMEOUT_SECONDS", defaultTimeout),
		Retries:   getEnvAsInt(prefix+"_RETRIES", 1),
		Cacheable: getEnvAsBool(prefix+"_CACHEABLE", defaultCacheable),
		CacheTTL:  getEnvAsDuration(prefix+"_CACHE_TTL_SECONDS", defaultTTL),
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
	strValue := strings.ToLower(getEnv(key, ""))
	if strValue == "true" || strValue == "1" {
		return true
	}
	if strValue == "false" || strValue == "0" {
		return false
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if seconds, err := strconv.Atoi(strValue); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
