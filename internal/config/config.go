package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Auth        AuthConfig                `json:"auth"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Generation  GenerationConfig          `json:"generation"`
	Embedding   EmbeddingConfig           `json:"embedding"`
	VectorIndex VectorIndexConfig         `json:"vector_index"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
	ChunkSize         int    `json:"chunk_size"`
	ChunkOverlap      int    `json:"chunk_overlap"`
	TopK              int    `json:"top_k"`
	MaxUploadMB       int64  `json:"max_upload_mb"`
	AnswerCacheTTL    int    `json:"answer_cache_ttl"` // minutes
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// GenerationConfig selects which entry of Providers answers questions.
type GenerationConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type EmbeddingConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type VectorIndexConfig struct {
	URL              string `json:"url"`
	APIKey           string `json:"api_key"`
	CollectionPrefix string `json:"collection_prefix"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
}

// Chunking defaults keep the overlap large relative to the chunk size so a
// semantic unit crossing a boundary stays intact in at least one chunk.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
	DefaultTopK         = 4
	DefaultMaxUploadMB  = 10
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret must be configured")
	}
	if cfg.VectorIndex.URL == "" {
		return nil, fmt.Errorf("vector_index.url must be configured")
	}
	if cfg.BasicConfig.ChunkSize <= 0 {
		cfg.BasicConfig.ChunkSize = DefaultChunkSize
	}
	if cfg.BasicConfig.ChunkOverlap <= 0 {
		cfg.BasicConfig.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.BasicConfig.TopK <= 0 {
		cfg.BasicConfig.TopK = DefaultTopK
	}
	if cfg.BasicConfig.MaxUploadMB <= 0 {
		cfg.BasicConfig.MaxUploadMB = DefaultMaxUploadMB
	}

	return &cfg, nil
}
