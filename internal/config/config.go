package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIPort  string
	LogLevel string

	StoragePath string

	ChunkSize    int
	ChunkOverlap int

	TopK         int
	SparseWeight float64
	DenseWeight  float64

	MaxExchanges  int
	FallbackTerms []string

	OllamaURL         string
	OllamaModel       string
	OllamaTemperature float64
	OllamaTopP        float64
	OllamaNumCtx      int

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		StoragePath: mustEnv("STORAGE_PATH", "./data/storage"),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 100),

		TopK:         mustEnvInt("TOP_K", 3),
		SparseWeight: mustEnvFloat("SPARSE_WEIGHT", 0.3),
		DenseWeight:  mustEnvFloat("DENSE_WEIGHT", 0.7),

		MaxExchanges:  mustEnvInt("MAX_EXCHANGES", 5),
		FallbackTerms: mustEnvList("FALLBACK_TERMS", "PE(,positional encoding,sin(,cos("),

		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       mustEnv("OLLAMA_MODEL", "gemma3"),
		OllamaTemperature: mustEnvFloat("OLLAMA_TEMPERATURE", 0.7),
		OllamaTopP:        mustEnvFloat("OLLAMA_TOP_P", 0.9),
		OllamaNumCtx:      mustEnvInt("OLLAMA_NUM_CTX", 4096),

		Neo4jURI:      mustEnv("NEO4J_URI", ""),
		Neo4jUser:     mustEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: mustEnv("NEO4J_PASSWORD", ""),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvList(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
