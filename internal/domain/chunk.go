package domain

// ChunkMetadata is the provenance every chunk carries into the vector store.
type ChunkMetadata struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	IsCompanyPolicy bool   `json:"is_company_policy"`
	Section         int    `json:"section"`
}

// Chunk is a bounded text segment with its embedding and provenance.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  ChunkMetadata
	Score     float64 // similarity, set on search results only
}

// ChunkFilter constrains vector store search and delete on chunk metadata.
type ChunkFilter struct {
	DocumentID string
	PolicyOnly bool
}

// IsEmpty reports whether the filter matches every chunk.
func (f ChunkFilter) IsEmpty() bool {
	return f.DocumentID == "" && !f.PolicyOnly
}

// Matches reports whether meta satisfies the filter.
func (f ChunkFilter) Matches(meta ChunkMetadata) bool {
	if f.DocumentID != "" && meta.DocumentID != f.DocumentID {
		return false
	}
	if f.PolicyOnly && !meta.IsCompanyPolicy {
		return false
	}
	return true
}
