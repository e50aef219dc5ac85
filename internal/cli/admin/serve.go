package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/cli"
	"github.com/cloo-solutions/ragkit/internal/config"
	"github.com/cloo-solutions/ragkit/internal/jobs"
	"github.com/cloo-solutions/ragkit/internal/server"
	"github.com/cloo-solutions/ragkit/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Ingest the configured documents, then serve search, retrieve, analyze and ingest over HTTP",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("watch", false, "Re-ingest documents when files in the documents directory change")
	cmd.Flags().Bool("skip-ingest", false, "Start with an empty index instead of ingesting on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("watch") {
		cfg.Watch, _ = cmd.Flags().GetBool("watch")
	}

	if cfg.HasSentry() {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate(cfg.Environment),
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := cli.BuildPipeline(ctx, cfg, log.Default())
	if err != nil {
		return err
	}
	defer p.Close()
	log.Printf("index ready (%s backend, %s similarity)", cfg.IndexBackend, cfg.Similarity)

	if skip, _ := cmd.Flags().GetBool("skip-ingest"); !skip {
		rep, err := p.Service.IngestSource(ctx, p.Source)
		if err != nil {
			return fmt.Errorf("startup ingestion failed: %w", err)
		}
		log.Printf("ingested %s: %d documents, %d chunks indexed, %d failures",
			p.Source.Name(), rep.Documents, rep.Indexed, len(rep.Failures))
	}

	reindexWorker := jobs.NewWorker(jobs.NewReindexWorker(p.Queue, p.Service, p.Sink), cfg.ReindexInterval, p.Sink)
	go reindexWorker.Start(ctx)
	log.Println("reindex worker started")

	var watchDone <-chan struct{}
	if cfg.Watch {
		if p.Files == nil {
			log.Println("watch ignored: documents are not read from a local directory")
		} else {
			watchDone, err = WatchDocuments(ctx, p.Service, p.Files, 0, p.Sink)
			if err != nil {
				return err
			}
			log.Printf("watching %s", p.Files.Root())
		}
	}

	router := server.NewRouter(server.RouterConfig{
		RetrievalHandler: handlers.NewRetrievalHandler(p.Service, p.Source),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Println("shutting down...")

	reindexWorker.Stop()
	cancel()
	if watchDone != nil {
		<-watchDone
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// sampleRate traces everything in development and 10% elsewhere.
func sampleRate(environment string) float64 {
	if environment == "" || environment == config.DefaultEnvironment {
		return 1.0
	}
	return 0.1
}
