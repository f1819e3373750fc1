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
	Session  SessionConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SessionLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
	OtelEndpoint       string
	ShutdownTimeout    time.Duration
}

type SessionConfig struct {
	TTL              time.Duration // 0 keeps sessions until explicitly ended
	SweepInterval    time.Duration
	HistoryMaxTurns  int
	HistoryMaxChars  int
	ChatLogPairing   string // "position" or "role"
	ArchiveTopicName string
}

type DatabaseConfig struct {
	Connection string
	Debug      bool
}

type APIKeys struct {
	GoogleGemini string
	HuggingFace  string
	OpenAI       string
	Jina         string
}

type AIConfig struct {
	ClassifierProvider string // "huggingface" or "keyword"
	ClassifierModel    string
	EmbeddingProvider  string // "huggingface", "ollama", "gemini" or "jina"
	EmbeddingModel     string
	OllamaBaseURL      string
	OllamaModel        string
	LLMProvider        string // "ollama", "huggingface", "openai"
	LLMModel           string
	LLMBaseURL         string
	LLMTemperature     float64
	RetrievalTopK      int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SessionLogFilePath: getEnv("SESSION_LOG_FILE_PATH", "logs/session.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://biblo.ai,http://biblo.ai"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			TTL:              getEnvAsDuration("SESSION_TTL", 0),
			SweepInterval:    getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			HistoryMaxTurns:  getEnvAsInt("HISTORY_MAX_TURNS", 10),
			HistoryMaxChars:  getEnvAsInt("HISTORY_MAX_CHARS", 8000),
			ChatLogPairing:   strings.ToLower(getEnv("CHAT_LOG_PAIRING", "position")),
			ArchiveTopicName: getEnv("SESSION_ARCHIVE_TOPIC_NAME", "SESSION_LOG_ARCHIVE"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Debug:      getEnvAsBool("DB_DEBUG", false),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
		},
		Ai: AIConfig{
			ClassifierProvider: getEnv("CLASSIFIER_PROVIDER", "huggingface"),
			ClassifierModel:    getEnv("CLASSIFIER_MODEL", "vanguard-huggingface/biblo-model"),
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "huggingface"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "jhgan/ko-sroberta-multitask"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:        getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			LLMModel:           getEnv("LLM_MODEL", "gpt-4-turbo"),
			LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
			LLMTemperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			RetrievalTopK:      getEnvAsInt("RETRIEVAL_TOP_K", 3),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
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

// getEnvAsDuration accepts Go durations ("30m") or plain seconds ("1800").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
