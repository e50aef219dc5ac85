package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/report"
	"github.com/cloo-solutions/ragkit/internal/service"
	"github.com/cloo-solutions/ragkit/internal/source"
)

// SourceIngester ingests the documents of a source.
type SourceIngester interface {
	IngestSource(ctx context.Context, src service.DocumentSource) (*domain.IngestReport, error)
}

// WatchDocuments re-ingests documents of files as they are created or
// modified, until ctx is done. It returns once the watch is established;
// done is closed when the watch loop exits.
func WatchDocuments(ctx context.Context, ingester SourceIngester, files *source.FilesystemSource, debounce time.Duration, sink report.Sink) (done <-chan struct{}, err error) {
	if sink == nil {
		sink = report.Discard
	}

	watcher := source.NewWatcher(files, debounce, func(err error) {
		sink.Emit(ctx, report.Failure(report.StageWatch, files.Name(), "", err))
	})
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", files.Root(), err)
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for names := range changes {
			rep, err := ingester.IngestSource(ctx, source.Only(files, names))
			if err != nil {
				sink.Emit(ctx, report.Failure(report.StageWatch, files.Name(), "", err))
				continue
			}
			sink.Emit(ctx, report.Event{
				Level:   report.LevelInfo,
				Stage:   report.StageWatch,
				Count:   rep.Indexed,
				Message: fmt.Sprintf("re-ingested %d changed documents", len(names)),
			})
		}
	}()

	return finished, nil
}
