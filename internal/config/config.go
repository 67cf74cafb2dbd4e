package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN   string
	StateBackend  string
	StatePath     string
	CorpusPath    string
	SettingsPath  string
	ChunkWindow   int
	LexicalFilter string

	NATSURL     string
	NATSSubject string

	WebSearchURL    string
	WebSearchAPIKey string

	QdrantURL        string
	QdrantCollection string

	Neo4jURL      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
	Neo4jIndex    string

	EmbedURL   string
	EmbedModel string

	RerankBackend  string
	RerankURL      string
	RerankModel    string
	RerankBudgetMS int

	ANNVectorsPath string
	ANNIDMapPath   string

	DefaultTopK     int
	SourceTimeoutMS int

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN:   mustEnv("POSTGRES_DSN", ""),
		StateBackend:  mustEnv("STATE_BACKEND", "file"),
		StatePath:     mustEnv("STATE_PATH", "./data/bandit_state.json"),
		CorpusPath:    mustEnv("CORPUS_PATH", "./data/corpus"),
		SettingsPath:  mustEnv("SETTINGS_PATH", ""),
		ChunkWindow:   mustEnvInt("CHUNK_WINDOW", 700),
		LexicalFilter: mustEnv("LEXICAL_PATH_FILTER", ""),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "retrieval.rewards"),

		WebSearchURL:    mustEnv("WEB_SEARCH_URL", ""),
		WebSearchAPIKey: mustEnv("WEB_SEARCH_API_KEY", ""),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "documents"),

		Neo4jURL:      mustEnv("NEO4J_URL", ""),
		Neo4jUser:     mustEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: mustEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: mustEnv("NEO4J_DATABASE", "neo4j"),
		Neo4jIndex:    mustEnv("NEO4J_FULLTEXT_INDEX", "entity_search"),

		EmbedURL:   mustEnv("EMBED_URL", "http://localhost:11434"),
		EmbedModel: mustEnv("EMBED_MODEL", "nomic-embed-text"),

		RerankBackend:  mustEnv("RERANK_BACKEND", "heuristic"),
		RerankURL:      mustEnv("RERANK_URL", ""),
		RerankModel:    mustEnv("RERANK_MODEL", ""),
		RerankBudgetMS: mustEnvInt("RERANK_BUDGET_MS", 2000),

		ANNVectorsPath: mustEnv("ANN_VECTORS_PATH", "./data/ann_vectors.bin"),
		ANNIDMapPath:   mustEnv("ANN_IDMAP_PATH", "./data/ann_ids.json"),

		DefaultTopK:     mustEnvInt("DEFAULT_TOP_K", 10),
		SourceTimeoutMS: mustEnvInt("SOURCE_TIMEOUT_MS", 5000),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
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
