package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Keys     APIKeys
	Ai       AIConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
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

type SMTPConfig struct {
	Host     string
	Port     int
	Email    string
	Password string
}

type APIKeys struct {
	OpenAI       string
	GoogleGemini string
	Jina         string
	HuggingFace  string
	EmbedTopic   string // Embedding job topic
}

type AIConfig struct {
	EmbeddingProvider   string // "openai", "gemini", "jina" or "ollama"
	EmbeddingModel      string
	EmbeddingDimensions int
	OllamaBaseURL       string
	OllamaEmbedModel    string
	LLMProvider         string // "ollama", "openai", "huggingface"
	LLMModel            string
}

// PipelineConfig tunes the embedding pipeline: how text is chunked, how hard
// the batch embedder pushes the provider, and how many books may be indexed
// at once.
type PipelineConfig struct {
	EmbeddingsDir      string
	ChunkSize          int
	ChunkOverlap       int
	BatchSize          int
	MaxConcurrent      int
	BatchDelayMs       int
	MaxRetries         int
	MaxConcurrentBooks int
	DispatchDelayMs    int
}

type CacheConfig struct {
	MaxBooks           int
	TTLMinutes         int
	SweepMinutes       int
	ResponseTTLHours   int
	ResponseMaxEntries int
	RetrievalTopK      int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Email:    getEnv("SMTP_EMAIL", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		Keys: APIKeys{
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			GoogleGemini: getEnv("GEMINI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			EmbedTopic:   getEnv("EMBED_BOOK_TOPIC_NAME", "EMBED_BOOK_CONTENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:    getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			LLMProvider:         getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:            getEnv("LLM_MODEL", "llama3.1:8b"),
		},
		Pipeline: PipelineConfig{
			EmbeddingsDir:      getEnv("EMBEDDINGS_DIR", "data/embeddings"),
			ChunkSize:          getEnvAsInt("CHUNK_SIZE", 1500),
			ChunkOverlap:       getEnvAsInt("CHUNK_OVERLAP", 200),
			BatchSize:          getEnvAsInt("EMBED_BATCH_SIZE", 40),
			MaxConcurrent:      getEnvAsInt("EMBED_MAX_CONCURRENT", 5),
			BatchDelayMs:       getEnvAsInt("EMBED_BATCH_DELAY_MS", 200),
			MaxRetries:         getEnvAsInt("EMBED_MAX_RETRIES", 5),
			MaxConcurrentBooks: getEnvAsInt("MAX_CONCURRENT_BOOKS", 1),
			DispatchDelayMs:    getEnvAsInt("QUEUE_DISPATCH_DELAY_MS", 100),
		},
		Cache: CacheConfig{
			MaxBooks:           getEnvAsInt("CACHE_MAX_BOOKS", 3),
			TTLMinutes:         getEnvAsInt("CACHE_TTL_MINUTES", 30),
			SweepMinutes:       getEnvAsInt("CACHE_SWEEP_MINUTES", 5),
			ResponseTTLHours:   getEnvAsInt("RESPONSE_CACHE_TTL_HOURS", 24),
			ResponseMaxEntries: getEnvAsInt("RESPONSE_CACHE_MAX_ENTRIES", 1000),
			RetrievalTopK:      getEnvAsInt("RETRIEVAL_TOP_K", 5),
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
