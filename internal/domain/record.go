package domain

// IndexedRecord is a chunk stored together with its embedding.
type IndexedRecord struct {
	ID         string
	Content    string
	SourceFile string
	Embedding  []float32
}

// NewIndexedRecord builds the record stored for chunk.
func NewIndexedRecord(chunk Chunk, embedding []float32) IndexedRecord {
	return IndexedRecord{
		ID:         chunk.ID,
		Content:    chunk.Content,
		SourceFile: chunk.SourceFile,
		Embedding:  embedding,
	}
}

// SearchResult pairs a record with its similarity to the query. Higher is
// more relevant.
type SearchResult struct {
	Record IndexedRecord
	Score  float64
}

// Similarity selects the scoring function of a vector index.
type Similarity string

const (
	SimilarityCosine Similarity = "cosine"
	SimilarityDot    Similarity = "dot"
)

// IsValid checks if the similarity is a known function
func (s Similarity) IsValid() bool {
	switch s {
	case SimilarityCosine, SimilarityDot:
		return true
	}
	return false
}
