package jobs

import (
	"context"
	"time"

	"github.com/cloo-solutions/ragkit/internal/report"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker represents a background job worker
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	sink         report.Sink
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance. A nil sink discards events.
func NewWorker(processor JobProcessor, pollInterval time.Duration, sink report.Sink) *Worker {
	if sink == nil {
		sink = report.Discard
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		sink:         sink,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.sink.Emit(ctx, report.Info(report.StageReindex, "worker started with poll interval "+w.pollInterval.String()))

	for {
		select {
		case <-ctx.Done():
			w.sink.Emit(context.WithoutCancel(ctx), report.Info(report.StageReindex, "worker stopped: context cancelled"))
			return
		case <-w.stopChan:
			w.sink.Emit(ctx, report.Info(report.StageReindex, "worker stopped: stop signal received"))
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				w.sink.Emit(ctx, report.Failure(report.StageReindex, "", "", err))
			}
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
