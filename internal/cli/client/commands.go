package client

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/cli"
	"github.com/cloo-solutions/ragkit/internal/config"
	"github.com/cloo-solutions/ragkit/internal/domain"
)

// openBackend picks the remote backend when an API URL is configured and
// builds a local pipeline otherwise. The returned func releases it.
//
// A local pgvector pipeline is refused: building one resets the tables a
// running ragkitd serves from.
func openBackend(cmd *cobra.Command) (Backend, func(), error) {
	cfg, err := cli.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	if cfg.IsRemote() {
		return NewRemoteBackend(NewAPIClient(cfg.APIURL)), func() {}, nil
	}
	if cfg.IndexBackend == config.BackendPGVector {
		return nil, nil, domain.NewConfigurationError("the %s backend clears the shared index when a pipeline starts; point ragkit at the server with --api-url instead", config.BackendPGVector)
	}

	logger := log.New(cmd.ErrOrStderr(), "", 0)
	p, err := cli.BuildPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	backend := NewLocalBackend(p)
	if !outputJSON(cmd) {
		progress := NewRenderer(cmd.ErrOrStderr(), DefaultStyles(), false)
		backend.OnIngest = func(resp *handlers.IngestResponse) {
			_ = progress.Ingest(resp)
		}
	}
	return backend, p.Close, nil
}

func outputJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}

func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b Backend, r *Renderer) error) error {
	backend, release, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer release()

	return fn(cmd.Context(), backend, NewRenderer(cmd.OutOrStdout(), DefaultStyles(), outputJSON(cmd)))
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the configured documents",
		Long:  "Chunks, embeds and indexes every document of the configured directory or bucket and prints the ingestion report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b Backend, r *Renderer) error {
				resp, err := b.Ingest(ctx)
				if err != nil {
					return err
				}
				return r.Ingest(resp)
			})
		},
	}
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index without query analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b Backend, r *Renderer) error {
				resp, err := b.Search(ctx, strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				return r.Results(resp)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default RAGKIT_SEARCH_LIMIT)")
	return cmd
}

// RetrieveCmd creates the retrieve command.
func RetrieveCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Analyze and rewrite a query, then search with the rewrite",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b Backend, r *Renderer) error {
				resp, err := b.Retrieve(ctx, strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				return r.Retrieval(resp)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default RAGKIT_SEARCH_LIMIT)")
	return cmd
}

// AnalyzeCmd creates the analyze command.
func AnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <query>",
		Short: "Classify and rewrite a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b Backend, r *Renderer) error {
				resp, err := b.Analyze(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return r.Analysis(resp)
			})
		},
	}
}

// NewRootCmd assembles the ragkit command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragkit",
		Short: "ragkit - document retrieval pipeline",
		Long: `ragkit ingests a document directory into a vector index and answers
similarity queries against it.

Environment variables (RAGKIT_ prefix, optionally from .env):
  RAGKIT_OPENAI_API_KEY   API key for embeddings and completions (required locally)
  RAGKIT_DOCUMENTS_DIR    Directory to ingest (default: Documents)
  RAGKIT_API_URL          Call a running ragkitd instead of a local pipeline`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	cli.AddConfigFlags(rootCmd.PersistentFlags())
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(IngestCmd())
	rootCmd.AddCommand(SearchCmd())
	rootCmd.AddCommand(RetrieveCmd())
	rootCmd.AddCommand(AnalyzeCmd())

	return rootCmd
}
