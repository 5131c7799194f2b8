package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerAddr  string `yaml:"server_addr"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
	LogLevel    string `yaml:"log_level"`
	DefaultTopK int    `yaml:"default_top_k"`
	// UploadDir keeps a copy of every uploaded file; empty disables it.
	UploadDir   string `yaml:"upload_dir"`

	StoreDriver string `yaml:"store_driver"`
	PgConn      string `yaml:"pg_conn"`
	SQLitePath  string `yaml:"sqlite_path"`
	Distance    string `yaml:"distance"`

	EmbedProvider    string        `yaml:"embed_provider"`
	EmbedBaseURL     string        `yaml:"embed_base_url"`
	EmbedAPIKey      string        `yaml:"embed_api_key"`
	EmbedModel       string        `yaml:"embed_model"`
	EmbedDim         int           `yaml:"embed_dim"`
	EmbedNormalize   bool          `yaml:"embed_normalize"`
	EmbedTimeout     time.Duration `yaml:"embed_timeout"`
	EmbedRetries     int           `yaml:"embed_retries"`
	EmbedBackoff     time.Duration `yaml:"embed_backoff"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`

	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	RedisAddr string        `yaml:"redis_addr"`

	ChunkMaxTokens int    `yaml:"chunk_max_tokens"`
	Tokenizer      string `yaml:"tokenizer"`
	PDFExtractor   string `yaml:"pdf_extractor"`

	LMBaseURL  string        `yaml:"lmstudio_base_url"`
	ChatModel  string        `yaml:"llm_model"`
	LLMAPIKey  string        `yaml:"llm_api_key"`
	LLMTimeout time.Duration `yaml:"llm_timeout"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		ServerAddr:  ":8080",
		BodyLimitMB: 32,
		LogLevel:    "info",
		DefaultTopK: 5,

		StoreDriver: "postgres",
		PgConn:      "host=localhost port=5432 user=postgres password=postgres dbname=vectorbrain sslmode=disable",
		SQLitePath:  "vectorbrain.db",
		Distance:    "l2",

		EmbedProvider:    "ollama",
		EmbedBaseURL:     "http://localhost:11434",
		EmbedModel:       "nomic-embed-text",
		EmbedDim:         768,
		EmbedTimeout:     30 * time.Second,
		EmbedRetries:     3,
		EmbedBackoff:     500 * time.Millisecond,
		EmbedConcurrency: 4,

		CacheSize: 10000,
		CacheTTL:  24 * time.Hour,

		ChunkMaxTokens: 512,
		Tokenizer:      "cl100k_base",
		PDFExtractor:   "native",

		LMBaseURL:  "http://localhost:1234/v1",
		ChatModel:  "llama3",
		LLMTimeout: 90 * time.Second,
	}
}

// Load собирает конфигурацию: .env, затем YAML из CONFIG_FILE, затем переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ServerAddr = getenv("SERVER_ADDR", c.ServerAddr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.UploadDir = getenv("UPLOAD_DIR", c.UploadDir)
	c.StoreDriver = getenv("STORE_DRIVER", c.StoreDriver)
	c.PgConn = getenv("PG_CONN", c.PgConn)
	c.SQLitePath = getenv("SQLITE_PATH", c.SQLitePath)
	c.Distance = getenv("DISTANCE", c.Distance)
	c.EmbedProvider = getenv("EMBED_PROVIDER", c.EmbedProvider)
	c.EmbedBaseURL = getenv("EMBED_BASE_URL", c.EmbedBaseURL)
	c.EmbedAPIKey = getenv("EMBED_API_KEY", c.EmbedAPIKey)
	c.EmbedModel = getenv("EMBED_MODEL", c.EmbedModel)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.Tokenizer = getenv("TOKENIZER", c.Tokenizer)
	c.PDFExtractor = getenv("PDF_EXTRACTOR", c.PDFExtractor)
	c.LMBaseURL = getenv("LMSTUDIO_BASE_URL", c.LMBaseURL)
	c.ChatModel = getenv("LLM_MODEL", c.ChatModel)
	c.LLMAPIKey = getenv("LLM_API_KEY", c.LLMAPIKey)

	var errs []error
	ints := []struct {
		key string
		dst *int
	}{
		{"BODY_LIMIT_MB", &c.BodyLimitMB},
		{"DEFAULT_TOP_K", &c.DefaultTopK},
		{"EMBED_DIM", &c.EmbedDim},
		{"EMBED_RETRIES", &c.EmbedRetries},
		{"EMBED_CONCURRENCY", &c.EmbedConcurrency},
		{"CACHE_SIZE", &c.CacheSize},
		{"CHUNK_MAX_TOKENS", &c.ChunkMaxTokens},
	}
	for _, it := range ints {
		errs = append(errs, getenvInt(it.key, it.dst))
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"EMBED_TIMEOUT", &c.EmbedTimeout},
		{"EMBED_BACKOFF", &c.EmbedBackoff},
		{"CACHE_TTL", &c.CacheTTL},
		{"LLM_TIMEOUT", &c.LLMTimeout},
	}
	for _, it := range durations {
		errs = append(errs, getenvDuration(it.key, it.dst))
	}
	errs = append(errs, getenvBool("EMBED_NORMALIZE", &c.EmbedNormalize))
	return errors.Join(errs...)
}

// Validate проверяет значения, которые нельзя исправить на лету.
func (c *Config) Validate() error {
	var errs []error
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.ChunkMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_MAX_TOKENS must be positive, got %d", c.ChunkMaxTokens))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SIZE must be positive, got %d", c.CacheSize))
	}
	if c.EmbedConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency))
	}
	if c.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TOP_K must be positive, got %d", c.DefaultTopK))
	}
	if c.EmbedRetries < 0 {
		errs = append(errs, fmt.Errorf("EMBED_RETRIES must not be negative, got %d", c.EmbedRetries))
	}
	if c.EmbedTimeout <= 0 {
		errs = append(errs, errors.New("EMBED_TIMEOUT must be positive"))
	}
	if c.BodyLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("BODY_LIMIT_MB must be positive, got %d", c.BodyLimitMB))
	}
	switch c.StoreDriver {
	case "postgres":
		if c.PgConn == "" {
			errs = append(errs, errors.New("PG_CONN is required for the postgres store"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.Distance != "l2" && c.Distance != "cosine" {
		errs = append(errs, fmt.Errorf("unknown DISTANCE %q", c.Distance))
	}
	if c.EmbedProvider != "ollama" && c.EmbedProvider != "openai" {
		errs = append(errs, fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider))
	}
	if c.Tokenizer != "cl100k_base" && c.Tokenizer != "words" {
		errs = append(errs, fmt.Errorf("unknown TOKENIZER %q", c.Tokenizer))
	}
	if c.PDFExtractor != "native" && c.PDFExtractor != "pdftotext" {
		errs = append(errs, fmt.Errorf("unknown PDF_EXTRACTOR %q", c.PDFExtractor))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, dst *int) error {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	*dst = n
	return nil
}

func getenvDuration(k string, dst *time.Duration) error {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	*dst = d
	return nil
}

func getenvBool(k string, dst *bool) error {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	*dst = b
	return nil
}
