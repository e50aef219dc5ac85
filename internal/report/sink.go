// Package report carries pipeline progress and failures to an injected sink,
// so the core never writes to a global logger.
package report

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/telemetry"
)

// Level is the severity of an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Stage names the pipeline step an event belongs to.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageIngest   Stage = "ingest"
	StageQuery    Stage = "query"
	StageReindex  Stage = "reindex"
	StageWatch    Stage = "watch"
)

// Event is one progress or failure notification.
type Event struct {
	Time     time.Time
	Level    Level
	Stage    Stage
	Document string
	ChunkID  string
	Count    int
	Message  string
	Err      error
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Info builds an info event.
func Info(stage Stage, message string) Event {
	return Event{Level: LevelInfo, Stage: stage, Message: message}
}

// Failure builds an error event for err.
func Failure(stage Stage, document, chunkID string, err error) Event {
	return Event{Level: LevelError, Stage: stage, Document: document, ChunkID: chunkID, Err: err}
}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Discard drops every event.
var Discard Sink = discard{}

type logEntry struct {
	Timestamp string `json:"ts"`
	Level     Level  `json:"level"`
	Stage     Stage  `json:"stage"`
	Document  string `json:"document,omitempty"`
	ChunkID   string `json:"chunk_id,omitempty"`
	Count     int    `json:"count,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// LogSink writes events as JSON lines through a logger.
type LogSink struct {
	logger *log.Logger
	min    Level
}

// NewLogSink creates a LogSink. Events below min are dropped; an empty min
// keeps everything.
func NewLogSink(logger *log.Logger, min Level) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger, min: min}
}

// Emit implements Sink.
func (s *LogSink) Emit(_ context.Context, e Event) {
	if rank(e.Level) < rank(s.min) {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	entry := logEntry{
		Timestamp: e.Time.UTC().Format(time.RFC3339Nano),
		Level:     e.Level,
		Stage:     e.Stage,
		Document:  e.Document,
		ChunkID:   e.ChunkID,
		Count:     e.Count,
		Message:   e.Message,
	}
	if e.Err != nil {
		entry.Code = domain.CodeOf(e.Err)
		entry.Error = e.Err.Error()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Printf("report_marshal_error: %v", err)
		return
	}
	s.logger.Println(string(payload))
}

func rank(l Level) int {
	switch l {
	case LevelWarn:
		return 1
	case LevelError:
		return 2
	}
	return 0
}

// SentrySink records events as Sentry breadcrumbs and captures errors.
type SentrySink struct{}

// NewSentrySink creates a SentrySink. It is inert until telemetry.Init has
// configured a client.
func NewSentrySink() *SentrySink {
	return &SentrySink{}
}

// Emit implements Sink.
func (s *SentrySink) Emit(ctx context.Context, e Event) {
	data := map[string]any{"stage": string(e.Stage)}
	if e.Document != "" {
		data["document"] = e.Document
	}
	if e.ChunkID != "" {
		data["chunk_id"] = e.ChunkID
	}
	if e.Count > 0 {
		data["count"] = e.Count
	}

	message := e.Message
	level := sentry.LevelInfo
	switch e.Level {
	case LevelWarn:
		level = sentry.LevelWarning
	case LevelError:
		level = sentry.LevelError
	}
	if e.Err != nil && message == "" {
		message = e.Err.Error()
	}

	telemetry.AddBreadcrumbWithData(ctx, "pipeline."+string(e.Stage), message, level, data)
	if e.Level == LevelError && e.Err != nil {
		telemetry.CaptureError(ctx, e.Err)
	}
}

// Multi fans events out to several sinks.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Errors returns the recorded events that carry an error.
func (r *Recorder) Errors() []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}
