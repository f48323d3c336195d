package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Vector   VectorConfig   `yaml:"vector"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	Debug   bool   `yaml:"debug"`
}

type VectorConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	DocsDir         string `yaml:"docs_dir"`
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	DefaultK        int    `yaml:"default_k"`
	ContinueOnError bool   `yaml:"continue_on_error"`
	CSVTextColumn   string `yaml:"csv_text_column"`
	JSONFieldPath   string `yaml:"json_field_path"`
	JSONLFieldPath  string `yaml:"jsonl_field_path"`
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultK            = 4
)

func LoadConfig(path string) (*Config, error) {
	// .env is optional; environment wins over the yaml file for secrets
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "vectors"
	}
	if c.Vector.Path == "" {
		c.Vector.Path = "./chromemdb"
	}
	if c.RAG.DocsDir == "" {
		c.RAG.DocsDir = "./docs"
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = DefaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if c.RAG.DefaultK == 0 {
		c.RAG.DefaultK = DefaultK
	}
	if c.RAG.CSVTextColumn == "" {
		c.RAG.CSVTextColumn = "text"
	}
	if c.RAG.JSONFieldPath == "" {
		c.RAG.JSONFieldPath = "/texts"
	}
	if c.RAG.JSONLFieldPath == "" {
		c.RAG.JSONLFieldPath = "/html"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DATABASE_KEY"); v != "" {
		c.Database.Key = v
	}
	if v := os.Getenv("EMBED_LLM_KEY"); v != "" {
		c.EmbedLLM.Key = v
	}
	if v := os.Getenv("CHAT_LLM_KEY"); v != "" {
		c.ChatLLM.Key = v
	}
}
