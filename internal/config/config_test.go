package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("DOCQA_VECTOR_STORE", "")
	t.Setenv("DOCQA_ADDR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL())
	assert.Equal(t, 20*time.Second, cfg.Extraction.Timeout())
	assert.Equal(t, int64(25<<20), cfg.Extraction.MaxUploadBytes())
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_FileOverridesAndFillsDefaults(t *testing.T) {
	t.Setenv("DOCQA_VECTOR_STORE", "")
	t.Setenv("DOCQA_ADDR", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
chunker:
  chunk_size: 500
  overlap: 50
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
generator:
  type: openai
  openai: {}
vector_store:
  type: qdrant
  qdrant:
    url: http://qdrant:6333
    collection: docs
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.OpenAI.Model)

	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "QDRANT_API_KEY", cfg.VectorStore.Qdrant.APIKeyEnv)
	assert.Equal(t, "Cosine", cfg.VectorStore.Qdrant.Distance)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCQA_VECTOR_STORE", "pinecone")
	t.Setenv("DOCQA_ADDR", "127.0.0.1:9000")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "pinecone", cfg.VectorStore.Type)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.NotNil(t, cfg.VectorStore.Pinecone)
	assert.Equal(t, "PINECONE_API_KEY", cfg.VectorStore.Pinecone.APIKeyEnv)
	assert.Equal(t, "PINECONE_INDEX", cfg.VectorStore.Pinecone.IndexEnv)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("DOCQA_VECTOR_STORE", "")
	t.Setenv("DOCQA_ADDR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.MinScore = 0.25
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	t.Setenv("DOCQA_VECTOR_STORE", "")
	t.Setenv("DOCQA_ADDR", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docqa", "config.yaml"), path)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
