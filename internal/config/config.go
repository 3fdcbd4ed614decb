package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendPostgres = "postgres"
	BackendChromem  = "chromem"

	DriverPgdriver = "pgdriver"
	DriverPQ       = "pq"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	ChatLLM     LLMConfig         `yaml:"chat_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BaseURL is used by the remote chat client.
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Dimension   int     `yaml:"dimension,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

type RAGConfig struct {
	TopK int `yaml:"top_k"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig reads the YAML config at path. Variables from a .env file next to the
// working directory are loaded first and ${VAR} references in the file are expanded.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case BackendPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres vector store")
		}
	case BackendChromem:
	default:
		return fmt.Errorf("unsupported vector_store.backend: %q", c.VectorStore.Backend)
	}
	if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPQ {
		return fmt.Errorf("unsupported database.driver: %q", c.Database.Driver)
	}
	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "chat_llm": c.ChatLLM} {
		if llm.Provider != ProviderOpenAI && llm.Provider != ProviderOllama {
			return fmt.Errorf("unsupported %s.provider: %q", name, llm.Provider)
		}
	}
	if c.EmbedLLM.Dimension <= 0 {
		return errors.New("embed_llm.dimension must be > 0")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost" + cfg.Server.Addr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = BackendChromem
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "./chromemdb"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "document_chunks"
	}
	applyLLMDefaults(&cfg.EmbedLLM, "text-embedding-3-small")
	applyLLMDefaults(&cfg.ChatLLM, "gpt-4o-mini")
	if cfg.EmbedLLM.Dimension == 0 {
		cfg.EmbedLLM.Dimension = 1536
		if cfg.EmbedLLM.Provider == ProviderOllama {
			cfg.EmbedLLM.Dimension = 768
		}
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyLLMDefaults(llm *LLMConfig, model string) {
	if llm.Provider == "" {
		llm.Provider = ProviderOpenAI
	}
	if llm.Provider == ProviderOpenAI {
		if llm.BaseURL == "" {
			llm.BaseURL = "https://api.openai.com/v1"
		}
		if llm.Model == "" {
			llm.Model = model
		}
		if llm.Key == "" {
			llm.Key = os.Getenv("OPENAI_API_KEY")
		}
	}
	if llm.Provider == ProviderOllama && llm.BaseURL == "" {
		llm.BaseURL = "http://localhost:11434"
	}
	llm.Key = strings.TrimPrefix(llm.Key, "Bearer ")
}
