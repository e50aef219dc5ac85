package cli

import (
	"github.com/spf13/pflag"

	"github.com/cloo-solutions/ragkit/internal/config"
)

// AddConfigFlags registers the flags that may override environment config.
// Defaults are empty so that only explicitly set flags win.
func AddConfigFlags(fs *pflag.FlagSet) {
	fs.String("docs", "", "Documents directory (overrides RAGKIT_DOCUMENTS_DIR)")
	fs.String("strategy", "", "Chunking strategy: fixed or semantic")
	fs.Int("chunk-size", 0, "Fixed chunk size in characters")
	fs.Int("overlap", 0, "Fixed chunk overlap in characters")
	fs.Int("concurrency", 0, "Maximum in-flight chunking and embedding calls")
	fs.String("backend", "", "Index backend: memory or pgvector (starting a pgvector pipeline clears the stored index)")
	fs.String("similarity", "", "Similarity measure: cosine or dot")
	fs.String("database-url", "", "Postgres URL for the pgvector backend")
	fs.String("prompts", "", "YAML file with prompt overrides")
	fs.String("domain", "", "Domain context used by query analysis")
	fs.String("api-url", "", "Call a running ragkitd at this URL instead of building a local pipeline")
}

// ApplyConfigFlags copies every explicitly set flag from fs into cfg.
func ApplyConfigFlags(fs *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}

	str("docs", &cfg.DocumentsDir)
	str("strategy", &cfg.ChunkStrategy)
	num("chunk-size", &cfg.ChunkSize)
	num("overlap", &cfg.ChunkOverlap)
	num("concurrency", &cfg.Concurrency)
	str("backend", &cfg.IndexBackend)
	str("similarity", &cfg.Similarity)
	str("database-url", &cfg.DatabaseURL)
	str("prompts", &cfg.PromptsFile)
	str("domain", &cfg.DomainContext)
	str("api-url", &cfg.APIURL)
}

// LoadConfig loads environment config and applies flag overrides from fs.
func LoadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if fs != nil {
		ApplyConfigFlags(fs, cfg)
	}
	return cfg, nil
}
