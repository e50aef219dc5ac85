// Package index provides the in-memory vector index.
package index

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

type entry struct {
	record domain.IndexedRecord
	// seq is assigned on first insert and kept on replacement.
	seq uint64
}

// MemoryIndex is a brute-force vector index held in process memory.
type MemoryIndex struct {
	dimension  int
	similarity domain.Similarity
	score      ScoreFunc

	mu          sync.RWMutex
	initialized bool
	entries     map[string]*entry
	nextSeq     uint64
}

// NewMemoryIndex creates an index for vectors of the given dimension.
func NewMemoryIndex(dimension int, similarity domain.Similarity) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, domain.NewConfigurationError("vector dimension must be positive, got %d", dimension)
	}
	score, err := ScoreFuncFor(similarity)
	if err != nil {
		return nil, err
	}
	if similarity == "" {
		similarity = domain.SimilarityCosine
	}
	return &MemoryIndex{
		dimension:  dimension,
		similarity: similarity,
		score:      score,
		entries:    make(map[string]*entry),
	}, nil
}

// Dimension returns the vector length accepted by the index.
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Similarity returns the scoring function of the index.
func (m *MemoryIndex) Similarity() domain.Similarity {
	return m.similarity
}

// EnsureInitialized makes the index ready for use. Repeated calls are no-ops.
func (m *MemoryIndex) EnsureInitialized(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// Upsert stores record, replacing any record with the same ID.
func (m *MemoryIndex) Upsert(ctx context.Context, record domain.IndexedRecord) error {
	stored := record
	stored.Embedding = append([]float32(nil), record.Embedding...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}
	if record.ID == "" || record.Content == "" {
		return domain.ErrMissingRequiredField
	}
	if len(record.Embedding) != m.dimension {
		return domain.NewDimensionMismatchError(m.dimension, len(record.Embedding))
	}

	if e, ok := m.entries[record.ID]; ok {
		e.record = stored
		return nil
	}
	m.entries[record.ID] = &entry{record: stored, seq: m.nextSeq}
	m.nextSeq++
	return nil
}

// Search returns up to k records ordered by descending score. Equal scores
// keep insertion order. The returned slice is not affected by later writes.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	m.mu.RLock()
	if !m.initialized {
		m.mu.RUnlock()
		return nil, domain.ErrNotInitialized
	}
	if len(query) != m.dimension {
		m.mu.RUnlock()
		return nil, domain.NewDimensionMismatchError(m.dimension, len(query))
	}
	type scored struct {
		result domain.SearchResult
		seq    uint64
	}
	candidates := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		candidates = append(candidates, scored{
			result: domain.SearchResult{Record: e.record, Score: m.score(e.record.Embedding, query)},
			seq:    e.seq,
		})
	}
	m.mu.RUnlock()

	if k <= 0 {
		return []domain.SearchResult{}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].result.Score != candidates[j].result.Score {
			return candidates[i].result.Score > candidates[j].result.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]domain.SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = candidates[i].result
		results[i].Record.Embedding = append([]float32(nil), results[i].Record.Embedding...)
	}
	return results, nil
}

// Count returns the number of stored records.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return 0, domain.ErrNotInitialized
	}
	return len(m.entries), nil
}
