package cli

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragkit/internal/config"
)

func TestApplyConfigFlags_OnlyChangedFlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddConfigFlags(fs)
	require.NoError(t, fs.Parse([]string{"--docs", "/srv/docs", "--chunk-size", "300", "--backend", "pgvector"}))

	cfg := &config.Config{
		DocumentsDir: "Documents",
		ChunkSize:    1000,
		ChunkOverlap: 200,
		IndexBackend: config.BackendMemory,
		Similarity:   "cosine",
		DatabaseURL:  "postgres://env",
	}
	ApplyConfigFlags(fs, cfg)

	assert.Equal(t, "/srv/docs", cfg.DocumentsDir)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, config.BackendPGVector, cfg.IndexBackend)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, "cosine", cfg.Similarity)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
}

func TestApplyConfigFlags_ZeroValueStillOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddConfigFlags(fs)
	require.NoError(t, fs.Parse([]string{"--overlap", "0", "--api-url", "http://localhost:8080"}))

	cfg := &config.Config{ChunkOverlap: 200}
	ApplyConfigFlags(fs, cfg)

	assert.Equal(t, 0, cfg.ChunkOverlap)
	assert.True(t, cfg.IsRemote())
}

func TestLoadConfig_AppliesFlags(t *testing.T) {
	t.Setenv("RAGKIT_DOCUMENTS_DIR", "/from/env")
	t.Setenv("RAGKIT_DOMAIN_CONTEXT", "chocolate")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddConfigFlags(fs)
	require.NoError(t, fs.Parse([]string{"--docs", "/from/flag"}))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.DocumentsDir)
	assert.Equal(t, "chocolate", cfg.DomainContext)
}
