// Package config loads application settings from a YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/chunker"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDatabasePath   = "SECONDBRAIN_DB_PATH"
	EnvBlobDir        = "SECONDBRAIN_BLOB_DIR"
	EnvEmbeddingHost  = "SECONDBRAIN_EMBEDDING_HOST"
	EnvChatHost       = "SECONDBRAIN_CHAT_HOST"
	EnvEmbeddingModel = "SECONDBRAIN_EMBEDDING_MODEL"
	EnvChatModel      = "SECONDBRAIN_CHAT_MODEL"
	EnvServerAddr     = "SECONDBRAIN_ADDR"
	EnvDefaultUser    = "SECONDBRAIN_DEFAULT_USER"
	EnvEmbedDelay     = "SECONDBRAIN_EMBED_DELAY"
	EnvPollInterval   = "SECONDBRAIN_POLL_INTERVAL"
	DefaultAPIKeyEnv  = "OPENAI_API_KEY"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// DatabaseConfig locates the BadgerDB directory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BlobConfig locates uploaded files.
type BlobConfig struct {
	Dir string `yaml:"dir"`
}

// AIConfig selects the embedding and chat providers.
type AIConfig struct {
	EmbeddingHost  string `yaml:"embedding_host"`
	ChatHost       string `yaml:"chat_host"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	APIKey         string `yaml:"-"`
}

// IngestionConfig controls chunking and embedding throttling.
type IngestionConfig struct {
	MaxTokens        int           `yaml:"max_tokens"`
	OverlapTokens    int           `yaml:"overlap_tokens"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	EmbedDelay       time.Duration `yaml:"embed_delay"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// WorkerConfig controls the job polling loop.
type WorkerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

// RetrievalConfig controls query answering.
type RetrievalConfig struct {
	Limit    int    `yaml:"limit"`
	Timezone string `yaml:"timezone"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DefaultUser string `yaml:"default_user"`
}

// Config is the root application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Blobs     BlobConfig      `yaml:"blobs"`
	AI        AIConfig        `yaml:"ai"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{Path: "secondbrain.db"},
		Blobs:    BlobConfig{Dir: "uploads"},
		AI: AIConfig{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			ChatHost:       aiDefaults.ChatHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			ChatModel:      aiDefaults.ChatModel,
			APIKeyEnv:      DefaultAPIKeyEnv,
		},
		Ingestion: IngestionConfig{
			MaxTokens:        chunker.DefaultMaxTokens,
			OverlapTokens:    chunker.DefaultOverlapTokens,
			EmbedConcurrency: 1,
			EmbedDelay:       100 * time.Millisecond,
			MaxUploadBytes:   50 << 20,
		},
		Worker: WorkerConfig{
			Interval:  5 * time.Second,
			BatchSize: 10,
		},
		Retrieval: RetrievalConfig{Limit: 5},
		Server: ServerConfig{
			Addr:        ":3000",
			DefaultUser: "default-user",
		},
	}
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load reads path, fills unset fields with defaults and applies environment
// overrides. An empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
			}
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

// Save writes cfg to path as YAML, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Path, EnvDatabasePath)
	setString(&c.Blobs.Dir, EnvBlobDir)
	setString(&c.AI.EmbeddingHost, EnvEmbeddingHost)
	setString(&c.AI.ChatHost, EnvChatHost)
	setString(&c.AI.EmbeddingModel, EnvEmbeddingModel)
	setString(&c.AI.ChatModel, EnvChatModel)
	setString(&c.Server.Addr, EnvServerAddr)
	setString(&c.Server.DefaultUser, EnvDefaultUser)

	if c.AI.APIKeyEnv != "" {
		c.AI.APIKey = os.Getenv(c.AI.APIKeyEnv)
	}

	if err := setDuration(&c.Ingestion.EmbedDelay, EnvEmbedDelay); err != nil {
		return err
	}
	return setDuration(&c.Worker.Interval, EnvPollInterval)
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, env string) error {
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are milliseconds.
		ms, convErr := strconv.Atoi(v)
		if convErr != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, env, v, err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	*dst = d
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Blobs.Dir == "":
		return fmt.Errorf("%w: blobs.dir is required", ErrInvalidConfig)
	case c.Ingestion.MaxTokens <= 0:
		return fmt.Errorf("%w: ingestion.max_tokens must be positive", ErrInvalidConfig)
	case c.Ingestion.OverlapTokens < 0 || c.Ingestion.OverlapTokens >= c.Ingestion.MaxTokens:
		return fmt.Errorf("%w: ingestion.overlap_tokens must be in [0, max_tokens)", ErrInvalidConfig)
	case c.Ingestion.EmbedConcurrency <= 0:
		return fmt.Errorf("%w: ingestion.embed_concurrency must be positive", ErrInvalidConfig)
	case c.Ingestion.EmbedDelay < 0:
		return fmt.Errorf("%w: ingestion.embed_delay must not be negative", ErrInvalidConfig)
	case c.Ingestion.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: ingestion.max_upload_bytes must be positive", ErrInvalidConfig)
	case c.Worker.Interval <= 0:
		return fmt.Errorf("%w: worker.interval must be positive", ErrInvalidConfig)
	case c.Worker.BatchSize <= 0:
		return fmt.Errorf("%w: worker.batch_size must be positive", ErrInvalidConfig)
	case c.Retrieval.Limit <= 0:
		return fmt.Errorf("%w: retrieval.limit must be positive", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Location returns the time zone for temporal phrases and rendered timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Retrieval.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Retrieval.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval.timezone: %w", ErrInvalidConfig, err)
	}
	return loc, nil
}

// AIConfig converts the ai section into provider configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithChatHost(c.AI.ChatHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithAPIKey(c.AI.APIKey),
	)
}
