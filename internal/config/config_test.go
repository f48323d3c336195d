package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, DefaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, DefaultK, cfg.RAG.DefaultK)
	assert.Equal(t, "text", cfg.RAG.CSVTextColumn)
	assert.Equal(t, "/texts", cfg.RAG.JSONFieldPath)
	assert.Equal(t, "/html", cfg.RAG.JSONLFieldPath)
	assert.Equal(t, "vectors", cfg.Vector.Collection)
	assert.False(t, cfg.RAG.ContinueOnError)
}

func TestLoadConfig_EnvOverridesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat_llm:\n  key: \"from-file\"\n"), 0o644))

	t.Setenv("CHAT_LLM_KEY", "from-env")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ChatLLM.Key)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
