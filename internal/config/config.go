package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App AppConfig
	Ai  AIConfig
	Rag RagConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "groq" or "ollama"
	LLMModel          string
	GroqAPIKey        string
}

type RagConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	HistoryMaxTurns int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "groq"),
			LLMModel:          getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			GroqAPIKey:        getEnv("GROQ_API_KEY", ""),
		},
		Rag: RagConfig{
			ChunkSize:       getEnvAsInt("RAG_CHUNK_SIZE", 1000),
			ChunkOverlap:    getEnvAsInt("RAG_CHUNK_OVERLAP", 150),
			HistoryMaxTurns: getEnvAsInt("RAG_HISTORY_MAX_TURNS", 10),
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
