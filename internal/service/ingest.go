package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/report"
	"github.com/cloo-solutions/ragkit/internal/telemetry"
)

// Ingest chunks, embeds and indexes docs. Chunking and embedding failures are
// collected per document and per chunk in the report. Once a chunk of a
// document fails, the document's unscheduled chunks are skipped. Index
// contract violations and context cancellation abort the batch and are
// returned together with the partial report.
func (s *RetrievalService) Ingest(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	result := &domain.IngestReport{Documents: len(docs)}
	if len(docs) == 0 {
		s.emit(ctx, report.Info(report.StageIngest, "no documents found"))
		return result, nil
	}
	s.emit(ctx, report.Event{Level: report.LevelInfo, Stage: report.StageIngest, Count: len(docs), Message: "ingestion started"})

	chunked := s.chunkAll(ctx, docs, result)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err := s.indexAll(ctx, chunked, result)
	span.SetData("indexed", result.Indexed)
	span.SetData("failures", len(result.Failures))
	if err != nil {
		span.SetError(err)
		s.emit(ctx, report.Failure(report.StageIngest, "", "", err))
		return result, err
	}

	s.emit(ctx, report.Event{
		Level:   report.LevelInfo,
		Stage:   report.StageIngest,
		Count:   result.Indexed,
		Message: fmt.Sprintf("ingestion finished: %d documents, %d chunks, %d failures", result.Documents, result.Chunks, len(result.Failures)),
	})
	return result, nil
}

// chunkAll runs the chunker over docs with bounded concurrency and returns
// the chunks per document, in input order.
func (s *RetrievalService) chunkAll(ctx context.Context, docs []domain.Document, result *domain.IngestReport) [][]domain.Chunk {
	chunked := make([][]domain.Chunk, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			chunks, err := s.chunker.Chunk(ctx, doc)
			if err != nil {
				errs[i] = asIngestionError(doc.SourceFile, err)
				return nil
			}
			chunked[i] = chunks
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			if ctx.Err() == nil {
				result.Failures = append(result.Failures, domain.IngestFailure{SourceFile: docs[i].SourceFile, Err: err})
				s.emit(ctx, report.Failure(report.StageChunk, docs[i].SourceFile, "", err))
			}
			continue
		}
		result.Chunks += len(chunked[i])
		s.emit(ctx, report.Event{Level: report.LevelInfo, Stage: report.StageChunk, Document: docs[i].SourceFile, Count: len(chunked[i])})
	}
	return chunked
}

func (s *RetrievalService) indexAll(ctx context.Context, chunked [][]domain.Chunk, result *domain.IngestReport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var mu sync.Mutex
	failed := make([]atomic.Bool, len(chunked))

	recordFailure := func(chunk domain.Chunk, err error, skipped bool) {
		mu.Lock()
		result.Failures = append(result.Failures, domain.IngestFailure{
			SourceFile: chunk.SourceFile,
			ChunkID:    chunk.ID,
			Skipped:    skipped,
			Err:        err,
		})
		mu.Unlock()

		level := report.LevelError
		if skipped {
			level = report.LevelWarn
		}
		s.emit(ctx, report.Event{Level: level, Stage: report.StageEmbed, Document: chunk.SourceFile, ChunkID: chunk.ID, Err: err})
		s.enqueue(ctx, chunk, err)
	}

schedule:
	for i, chunks := range chunked {
		for _, chunk := range chunks {
			if gctx.Err() != nil {
				break schedule
			}
			if failed[i].Load() {
				recordFailure(chunk, domain.ErrChunkSkipped, true)
				continue
			}

			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				if failed[i].Load() {
					recordFailure(chunk, domain.ErrChunkSkipped, true)
					return nil
				}

				err := s.IndexChunk(gctx, chunk)
				switch {
				case err == nil:
					mu.Lock()
					result.Indexed++
					mu.Unlock()
					s.resolve(ctx, chunk)
					return nil
				case domain.IsIndexContractViolation(err):
					return err
				case gctx.Err() != nil:
					// batch aborted
					return nil
				}

				failed[i].Store(true)
				recordFailure(chunk, err, false)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// IngestSource reads every document of src and ingests them. A source that
// cannot be listed and documents that cannot be read are reported as
// ingestion failures; only index contract violations are returned as errors.
func (s *RetrievalService) IngestSource(ctx context.Context, src DocumentSource) (*domain.IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.IngestSource", telemetry.SpanAttributes{
		Document:  src.Name(),
		Operation: "ingest_source",
	})
	defer span.End()

	names, err := src.ListDocuments(ctx)
	if err != nil {
		err = asIngestionError(src.Name(), err)
		s.emit(ctx, report.Failure(report.StageDiscover, src.Name(), "", err))
		return &domain.IngestReport{Failures: []domain.IngestFailure{{SourceFile: src.Name(), Err: err}}}, nil
	}
	s.emit(ctx, report.Event{Level: report.LevelInfo, Stage: report.StageDiscover, Document: src.Name(), Count: len(names)})

	docs, unreadable := s.readAll(ctx, src, names)
	if err := ctx.Err(); err != nil {
		return &domain.IngestReport{Documents: len(names)}, err
	}

	result, err := s.Ingest(ctx, docs)
	result.Documents += len(unreadable)
	result.Failures = append(unreadable, result.Failures...)
	return result, err
}

func (s *RetrievalService) readAll(ctx context.Context, src DocumentSource, names []string) ([]domain.Document, []domain.IngestFailure) {
	docs := make([]domain.Document, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			doc, err := src.ReadDocument(ctx, name)
			if err != nil {
				errs[i] = asIngestionError(name, err)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	readable := make([]domain.Document, 0, len(names))
	var failures []domain.IngestFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, domain.IngestFailure{SourceFile: names[i], Err: err})
			s.emit(ctx, report.Failure(report.StageExtract, names[i], "", err))
			continue
		}
		readable = append(readable, docs[i])
	}
	return readable, failures
}

func (s *RetrievalService) enqueue(ctx context.Context, chunk domain.Chunk, cause error) {
	if s.opts.Queue == nil {
		return
	}
	if _, err := s.opts.Queue.Enqueue(context.WithoutCancel(ctx), chunk, cause); err != nil {
		s.emit(ctx, report.Failure(report.StageReindex, chunk.SourceFile, chunk.ID, fmt.Errorf("failed to enqueue re-index job: %w", err)))
	}
}

// resolve closes any open re-index job for chunk so a retry cannot replace
// the content just indexed.
func (s *RetrievalService) resolve(ctx context.Context, chunk domain.Chunk) {
	if s.opts.Queue == nil {
		return
	}
	if err := s.opts.Queue.Resolve(context.WithoutCancel(ctx), chunk.ID); err != nil {
		s.emit(ctx, report.Failure(report.StageReindex, chunk.SourceFile, chunk.ID, fmt.Errorf("failed to resolve re-index job: %w", err)))
	}
}

// asIngestionError keeps domain errors as they are and wraps anything else
// as an ingestion error for name.
func asIngestionError(name string, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("failed to ingest %s", name), err)
}
