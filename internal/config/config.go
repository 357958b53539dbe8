package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Keys      APIKeys
	Ai        AIConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type StorageConfig struct {
	UploadDir string // raw uploads and extracted text
	PageDir   string // one file per (document, page)
}

type APIKeys struct {
	OpenAI      string
	JwtHMAC     string
	HF          string
	IngestTopic string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "openai"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama", "openai-proxy", "huggingface"
	LLMModel          string
	LLMBaseURL        string
	ParseServiceURL   string // document/PDF extraction service
}

type RetrievalConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	TopK          int
	SummaryBudget int

	// Index-page heuristic thresholds, shared by ingestion and query.
	NumberLineRatio float64
	HTTPOccurrences int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "./data/uploads"),
			PageDir:   getEnv("PAGE_DIR", "./data/pages"),
		},
		Keys: APIKeys{
			OpenAI:      getEnv("OPENAI_API_KEY", ""),
			JwtHMAC:     getEnv("JWT_SECRET", ""),
			HF:          getEnv("HF_API_KEY", ""),
			IngestTopic: getEnv("INGEST_DOCUMENT_TOPIC_NAME", "INGEST_DOCUMENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			ParseServiceURL:   getEnv("PARSE_SERVICE_URL", "http://localhost:5008/api8"),
		},
		Retrieval: RetrievalConfig{
			ChunkSize:     getEnvAsInt("CHUNK_SIZE", 200),
			ChunkOverlap:  getEnvAsInt("CHUNK_OVERLAP", 0),
			TopK:          getEnvAsInt("RETRIEVAL_TOP_K", 2),
			SummaryBudget: getEnvAsInt("SUMMARY_CHAR_BUDGET", 6000),

			NumberLineRatio: getEnvAsFloat("INDEX_PAGE_NUMBER_LINE_RATIO", 0.3),
			HTTPOccurrences: getEnvAsInt("INDEX_PAGE_HTTP_OCCURRENCES", 3),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
