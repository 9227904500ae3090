// Package config loads coursekb settings from config.json and COURSEKB_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "COURSEKB"

type Config struct {
	OpenAIAPIKey    string `mapstructure:"OpenAIAPIKey"`
	LangChainAPIKey string `mapstructure:"LangChainAPIKey"`

	LLM         LLMConfig         `mapstructure:"llm"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Splitter    SplitterConfig    `mapstructure:"splitter"`
	Retriever   RetrieverConfig   `mapstructure:"retriever"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Batch       BatchConfig       `mapstructure:"batch"`
	ChatHistory ChatHistoryConfig `mapstructure:"chathistory"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Materials   MaterialsConfig   `mapstructure:"materials"`
}

type LLMConfig struct {
	// Provider is "openai" or "bedrock"
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	BaseURL     string  `mapstructure:"base_url"`
	Region      string  `mapstructure:"region"`
}

type EmbeddingConfig struct {
	Model             string  `mapstructure:"model"`
	BatchSize         int     `mapstructure:"batch_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Dimensions        int     `mapstructure:"dimensions"`
}

type SplitterConfig struct {
	// Type is "recursive", "token" or "character"
	Type         string `mapstructure:"type"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	// Model selects the tiktoken encoding
	Model        string `mapstructure:"model"`
}

type RetrieverConfig struct {
	TopK           int     `mapstructure:"top_k"`
	ScoreThreshold float32 `mapstructure:"score_threshold"`
}

type VectorStoreConfig struct {
	// Type is "chromem" or "pgvector"
	Type       string `mapstructure:"type"`
	Collection string `mapstructure:"collection"`
	// Path persists the chromem database so separate commands share one index; empty keeps it in memory
	Path       string `mapstructure:"path"`
	Compress   bool   `mapstructure:"compress"`

	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	Distance string `mapstructure:"distance"`
}

type StorageConfig struct {
	// Type is "local" or "s3"
	Type         string `mapstructure:"type"`
	Dir          string `mapstructure:"dir"`
	MetadataFile string `mapstructure:"metadata_file"`
	MaxFileSize  int64  `mapstructure:"max_file_size"`

	S3 S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UsePathStyle    bool          `mapstructure:"use_path_style"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

type BatchConfig struct {
	// Store is "memory" or "redis"
	Store         string        `mapstructure:"store"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type ChatHistoryConfig struct {
	// Store is "memory" or "postgres"
	Store        string `mapstructure:"store"`
	DSN          string `mapstructure:"dsn"`
	ReturnLimit  int    `mapstructure:"return_limit"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MaterialsConfig struct {
	Dir       string   `mapstructure:"dir"`
	Glob      string   `mapstructure:"glob"`
	Recursive bool     `mapstructure:"recursive"`
	URLs      []string `mapstructure:"urls"`
	// S3Prefix loads materials from storage.s3.bucket under this prefix when set
	S3Prefix  string   `mapstructure:"s3_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OpenAIAPIKey", "")
	v.SetDefault("LangChainAPIKey", "")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.region", "us-east-1")

	v.SetDefault("embedding.model", "text-embedding-ada-002")
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.requests_per_second", 0)
	v.SetDefault("embedding.dimensions", 1536)

	v.SetDefault("splitter.type", "recursive")
	v.SetDefault("splitter.chunk_size", 300)
	v.SetDefault("splitter.chunk_overlap", 50)
	v.SetDefault("splitter.model", "gpt-3.5-turbo")

	v.SetDefault("retriever.top_k", 3)
	v.SetDefault("retriever.score_threshold", 0)

	v.SetDefault("vectorstore.type", "chromem")
	v.SetDefault("vectorstore.collection", "course_materials")
	v.SetDefault("vectorstore.path", "chroma_db")
	v.SetDefault("vectorstore.compress", false)
	v.SetDefault("vectorstore.dsn", "")
	v.SetDefault("vectorstore.table", "documents")
	v.SetDefault("vectorstore.distance", "cosine")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.dir", "UserUploads")
	v.SetDefault("storage.metadata_file", "document_metadata.json")
	v.SetDefault("storage.max_file_size", 50*1024*1024)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.presign_expiry", 15*time.Minute)

	v.SetDefault("batch.store", "memory")
	v.SetDefault("batch.redis_addr", "localhost:6379")
	v.SetDefault("batch.redis_password", "")
	v.SetDefault("batch.redis_db", 0)
	v.SetDefault("batch.prefix", "coursekb:batch:")
	v.SetDefault("batch.ttl", 7*24*time.Hour)

	v.SetDefault("chathistory.store", "memory")
	v.SetDefault("chathistory.dsn", "")
	v.SetDefault("chathistory.return_limit", 20)
	v.SetDefault("chathistory.system_prompt", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("log.level", "info")

	v.SetDefault("materials.dir", "CourseMaterials/deep_learning")
	v.SetDefault("materials.glob", "*.pdf")
	v.SetDefault("materials.recursive", false)
	v.SetDefault("materials.urls", []string{})
	v.SetDefault("materials.s3_prefix", "")
}

// Load reads path, or ./config.json when path is empty. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q, expected one of %s", field, value, strings.Join(allowed, ", "))
}

// Validate checks the enumerated settings and the settings each backend requires
func (c *Config) Validate() error {
	errs := []error{
		oneOf("llm.provider", c.LLM.Provider, "openai", "bedrock"),
		oneOf("splitter.type", c.Splitter.Type, "recursive", "token", "character"),
		oneOf("vectorstore.type", c.VectorStore.Type, "chromem", "pgvector"),
		oneOf("vectorstore.distance", c.VectorStore.Distance, "cosine", "euclidean", "inner_product"),
		oneOf("storage.type", c.Storage.Type, "local", "s3"),
		oneOf("batch.store", c.Batch.Store, "memory", "redis"),
		oneOf("chathistory.store", c.ChatHistory.Store, "memory", "postgres"),
	}

	if c.Splitter.ChunkSize <= 0 || c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		errs = append(errs, fmt.Errorf("invalid splitter window: size %d, overlap %d", c.Splitter.ChunkSize, c.Splitter.ChunkOverlap))
	}
	if c.Retriever.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retriever.top_k must be positive, got %d", c.Retriever.TopK))
	}
	if c.VectorStore.Type == "pgvector" && c.VectorStore.DSN == "" {
		errs = append(errs, errors.New("vectorstore.dsn is required for pgvector"))
	}
	if (c.Storage.Type == "s3" || c.Materials.S3Prefix != "") && c.Storage.S3.Bucket == "" {
		errs = append(errs, errors.New("storage.s3.bucket is required for s3 storage"))
	}
	if c.ChatHistory.Store == "postgres" && c.ChatHistory.DSN == "" {
		errs = append(errs, errors.New("chathistory.dsn is required for postgres"))
	}

	return errors.Join(errs...)
}
