package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	GeminiAPIKey string
	Port         string
	GinMode      string
	CORSOrigins  []string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT Token Secrets
	AccessSecret  string
	RefreshSecret string
	BcryptCost    int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Document ingestion
	MaxFileSize    int64
	AllowedTypes   []string
	FileStorageDir string
	MaxChunkSize   int
	ChunkOverlap   int
	MinChunkSize   int
	// Chunk text larger than this is gzip-compressed before storage
	CompressionThreshold int

	// LLM configuration
	GeminiTier      string
	ChatModel       string
	EmbeddingsModel string

	// MongoDB Search/Vector Search
	AtlasTextSearchEnabled bool
	VectorSearchEnabled    bool
	SearchIndexName        string
	VectorIndexName        string
	VectorDimensions       int

	// Retrieval tuning
	RetrievalTopK        int
	CandidateMultiplier  int
	SimilarityThreshold  float64
	DatasetRowLimit      int
	WebSearchEndpoint    string
	WebFetchTimeout      int
	WebResultLimit       int

	// Orchestrator
	AgentStorePath    string
	MaxVerifyAttempts int
	AgentTimeout      int // seconds, per retrieval agent

	// Crawler
	CrawlMaxPages      int
	CrawlRespectRobots bool
	RecrawlCron        string

	// SMTP Configuration
	SMTPHost           string
	SMTPPort           string
	SMTPUser           string
	SMTPPass           string
	SMTPFrom           string
	AdminEmails        []string
	EmailOnRunFailure  bool
	EmailChatSummaries bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/agentic_rag"),
		DBName:       getEnv("DB_NAME", "agentic_rag"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// JWT Token Secrets
		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),
		BcryptCost:    getEnvInt("BCRYPT_COST", 12),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Document ingestion
		MaxFileSize:          getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:         strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf"), ","),
		FileStorageDir:       getEnv("FILE_STORAGE_DIR", "./storage"),
		MaxChunkSize:         getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:         getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize:         getEnvInt("MIN_CHUNK_SIZE", 100),
		CompressionThreshold: getEnvInt("CHUNK_COMPRESSION_THRESHOLD", 4096),

		// LLM configuration
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		ChatModel:       getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		// MongoDB Search/Vector Search
		AtlasTextSearchEnabled: getEnvBool("MONGODB_SEARCH_ENABLED", false),
		VectorSearchEnabled:    getEnvBool("MONGODB_VECTOR_ENABLED", true),
		SearchIndexName:        getEnv("MONGODB_SEARCH_INDEX", "chunks_text"),
		VectorIndexName:        getEnv("MONGODB_VECTOR_INDEX", "chunks_vector"),
		VectorDimensions:       getEnvInt("VECTOR_DIM", 768),

		// Retrieval tuning
		RetrievalTopK:       getEnvInt("RETRIEVAL_TOP_K", 8),
		CandidateMultiplier: getEnvInt("RETRIEVAL_CANDIDATE_MULTIPLIER", 10),
		SimilarityThreshold: getEnvFloat64("RETRIEVAL_SIMILARITY_THRESHOLD", 0.55),
		DatasetRowLimit:     getEnvInt("DATASET_ROW_LIMIT", 20),
		WebSearchEndpoint:   getEnv("WEB_SEARCH_ENDPOINT", ""),
		WebFetchTimeout:     getEnvInt("WEB_FETCH_TIMEOUT", 20),
		WebResultLimit:      getEnvInt("WEB_RESULT_LIMIT", 5),

		// Orchestrator
		AgentStorePath:    getEnv("AGENT_STORE_PATH", "configs/agents.yaml"),
		MaxVerifyAttempts: getEnvInt("MAX_VERIFY_ATTEMPTS", 3),
		AgentTimeout:      getEnvInt("AGENT_TIMEOUT", 90),

		// Crawler
		CrawlMaxPages:      getEnvInt("CRAWL_MAX_PAGES", 50),
		CrawlRespectRobots: getEnvBool("CRAWL_RESPECT_ROBOTS", true),
		RecrawlCron:        getEnv("RECRAWL_CRON", "0 3 * * *"),

		// SMTP Configuration
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPass:           getEnv("SMTP_PASS", ""),
		SMTPFrom:           getEnv("SMTP_FROM", ""),
		AdminEmails:        strings.Split(getEnv("ADMIN_EMAILS", ""), ","),
		EmailOnRunFailure:  getEnvBool("EMAIL_ON_RUN_FAILURE", false),
		EmailChatSummaries: getEnvBool("EMAIL_CHAT_SUMMARIES", false),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
