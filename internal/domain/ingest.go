package domain

// IngestFailure records one document or chunk that did not reach the index.
// ChunkID is empty for document-level failures. Skipped chunks were never
// sent for embedding because an earlier chunk of the same document failed.
type IngestFailure struct {
	SourceFile string
	ChunkID    string
	Skipped    bool
	Err        error
}

// IngestReport summarises a batch ingestion.
type IngestReport struct {
	Documents int
	Chunks    int
	Indexed   int
	Failures  []IngestFailure
}

// FailedDocuments counts the distinct source files with at least one failure.
func (r *IngestReport) FailedDocuments() int {
	seen := make(map[string]struct{}, len(r.Failures))
	for _, f := range r.Failures {
		seen[f.SourceFile] = struct{}{}
	}
	return len(seen)
}

// SkippedChunks counts the chunks that were not attempted.
func (r *IngestReport) SkippedChunks() int {
	n := 0
	for _, f := range r.Failures {
		if f.Skipped {
			n++
		}
	}
	return n
}

// Merge adds other's counters and failures into r.
func (r *IngestReport) Merge(other *IngestReport) {
	if other == nil {
		return
	}
	r.Documents += other.Documents
	r.Chunks += other.Chunks
	r.Indexed += other.Indexed
	r.Failures = append(r.Failures, other.Failures...)
}
