package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string          `json:"log_level"`
	LogFormat string          `json:"log_format"`
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Index     IndexConfig     `json:"index"`
	WebSearch WebSearchConfig `json:"web_search"`
}

type ServerConfig struct {
	Host                    string `json:"host"`
	Port                    int    `json:"port"`
	ReadTimeoutSeconds      int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds     int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds  int    `json:"shutdown_timeout_seconds"`
	MigrationTimeoutSeconds int    `json:"migration_timeout_seconds"`
}

type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// RedisConfig Redis 配置。URL 为空时答案缓存退化为进程内缓存。
type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

// LLMConfig OpenAI 兼容补全服务配置（OpenAI / Ollama / DeepSeek 等）。
type LLMConfig struct {
	APIKey                string `json:"api_key"`
	BaseURL               string `json:"base_url"`
	Model                 string `json:"model"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
}

type EmbeddingConfig struct {
	Model string `json:"model"`
	Dims  int    `json:"dims"`
}

// IndexConfig 向量索引持久化文件。服务端启动时一次性加载。
type IndexConfig struct {
	VectorFile string `json:"vector_file"`
	TextsFile  string `json:"texts_file"`
}

type WebSearchConfig struct {
	BaseURL        string `json:"base_url"`
	MaxResults     int    `json:"max_results"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                    "0.0.0.0",
			Port:                    8080,
			ReadTimeoutSeconds:      30,
			WriteTimeoutSeconds:     120,
			ShutdownTimeoutSeconds:  15,
			MigrationTimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           10,
			MaxIdleConns:           2,
			ConnMaxLifetimeSeconds: 300,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
			Dims:  384,
		},
		Index: IndexConfig{
			VectorFile: "crime_index.bin",
			TextsFile:  "crime_texts.json",
		},
		WebSearch: WebSearchConfig{
			BaseURL:        "https://html.duckduckgo.com",
			MaxResults:     5,
			TimeoutSeconds: 15,
		},
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyInt("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeoutSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	applyString("LLM_API_KEY", &c.LLM.APIKey)
	applyString("LLM_BASE_URL", &c.LLM.BaseURL)
	applyString("LLM_MODEL", &c.LLM.Model)
	applyInt("LLM_CONNECT_TIMEOUT", &c.LLM.ConnectTimeoutSeconds)

	applyString("EMBEDDING_MODEL", &c.Embedding.Model)
	applyInt("EMBEDDING_DIMS", &c.Embedding.Dims)

	applyString("INDEX_VECTOR_FILE", &c.Index.VectorFile)
	applyString("INDEX_TEXTS_FILE", &c.Index.TextsFile)

	applyString("WEB_SEARCH_BASE_URL", &c.WebSearch.BaseURL)
	applyInt("WEB_SEARCH_MAX_RESULTS", &c.WebSearch.MaxResults)
	applyInt("WEB_SEARCH_TIMEOUT", &c.WebSearch.TimeoutSeconds)
}

func (c *AppConfig) normalize() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.WebSearch.MaxResults <= 0 {
		c.WebSearch.MaxResults = 5
	}
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.Index.VectorFile) == "" || strings.TrimSpace(c.Index.TextsFile) == "" {
		return fmt.Errorf("INDEX_VECTOR_FILE and INDEX_TEXTS_FILE are required")
	}
	if c.Embedding.Dims <= 0 {
		return fmt.Errorf("EMBEDDING_DIMS must be positive")
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
