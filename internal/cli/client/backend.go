package client

import (
	"context"
	"sync"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/cli"
)

// Backend runs the pipeline operations either in-process or against ragkitd.
// Both return the HTTP API's response shapes so rendering is shared.
type Backend interface {
	Ingest(ctx context.Context) (*handlers.IngestResponse, error)
	Search(ctx context.Context, query string, limit int) (*handlers.SearchResponse, error)
	Retrieve(ctx context.Context, query string, limit int) (*handlers.RetrieveResponse, error)
	Analyze(ctx context.Context, query string) (*handlers.AnalysisResponse, error)
}

// LocalBackend drives an in-process pipeline. The index does not outlive the
// process, so the configured documents are ingested once before the first
// query.
type LocalBackend struct {
	pipeline *cli.Pipeline
	// OnIngest, when set, receives the report of the implicit ingestion.
	OnIngest func(*handlers.IngestResponse)

	once      sync.Once
	ingested  *handlers.IngestResponse
	ingestErr error
}

func NewLocalBackend(p *cli.Pipeline) *LocalBackend {
	return &LocalBackend{pipeline: p}
}

func (b *LocalBackend) Ingest(ctx context.Context) (*handlers.IngestResponse, error) {
	b.once.Do(func() {
		rep, err := b.pipeline.Service.IngestSource(ctx, b.pipeline.Source)
		if err != nil {
			b.ingestErr = err
			return
		}
		b.ingested = handlers.NewIngestResponse(b.pipeline.Source.Name(), rep)
	})
	return b.ingested, b.ingestErr
}

func (b *LocalBackend) prepare(ctx context.Context) error {
	first := b.ingested == nil
	resp, err := b.Ingest(ctx)
	if err != nil {
		return err
	}
	if first && b.OnIngest != nil {
		b.OnIngest(resp)
	}
	return nil
}

func (b *LocalBackend) Search(ctx context.Context, query string, limit int) (*handlers.SearchResponse, error) {
	if err := b.prepare(ctx); err != nil {
		return nil, err
	}
	results, err := b.pipeline.Service.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &handlers.SearchResponse{Results: handlers.NewSearchResultResponses(results)}, nil
}

func (b *LocalBackend) Retrieve(ctx context.Context, query string, limit int) (*handlers.RetrieveResponse, error) {
	if err := b.prepare(ctx); err != nil {
		return nil, err
	}
	out, err := b.pipeline.Service.Retrieve(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &handlers.RetrieveResponse{
		Analysis:       handlers.NewAnalysisResponse(out.Analysis),
		RewrittenQuery: out.RewrittenQuery,
		Results:        handlers.NewSearchResultResponses(out.Results),
	}, nil
}

// Analyze needs no index, so nothing is ingested.
func (b *LocalBackend) Analyze(ctx context.Context, query string) (*handlers.AnalysisResponse, error) {
	analysis, err := b.pipeline.Service.AnalyzeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return handlers.NewAnalysisResponse(analysis), nil
}

// RemoteBackend calls a running ragkitd.
type RemoteBackend struct {
	api *APIClient
}

func NewRemoteBackend(api *APIClient) *RemoteBackend {
	return &RemoteBackend{api: api}
}

func (b *RemoteBackend) Ingest(ctx context.Context) (*handlers.IngestResponse, error) {
	var resp handlers.IngestResponse
	if err := b.api.PostInto(ctx, "/ingest", handlers.IngestRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *RemoteBackend) Search(ctx context.Context, query string, limit int) (*handlers.SearchResponse, error) {
	var resp handlers.SearchResponse
	if err := b.api.PostInto(ctx, "/search", handlers.SearchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *RemoteBackend) Retrieve(ctx context.Context, query string, limit int) (*handlers.RetrieveResponse, error) {
	var resp handlers.RetrieveResponse
	if err := b.api.PostInto(ctx, "/retrieve", handlers.SearchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *RemoteBackend) Analyze(ctx context.Context, query string) (*handlers.AnalysisResponse, error) {
	var resp handlers.AnalysisResponse
	if err := b.api.PostInto(ctx, "/analyze", handlers.AnalyzeRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
