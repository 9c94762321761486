// Package vectorstore holds the in-process chunk index.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps chunks in insertion order and searches by brute-force
// cosine similarity. Equal scores keep insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrVectorStoreFailed.Wrap(err)
	}

	stored := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return domain.ErrVectorStoreFailed.Wrap(fmt.Errorf("chunk for document %s has no embedding", c.Metadata.DocumentID))
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Embedding = slices.Clone(c.Embedding)
		c.Score = 0
		stored = append(stored, c)
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, stored...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, embedding []float32, k int, filter domain.ChunkFilter) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrVectorStoreFailed.Wrap(err)
	}
	if k <= 0 {
		return []domain.Chunk{}, nil
	}

	s.mu.RLock()
	candidates := make([]domain.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if !filter.Matches(c.Metadata) {
			continue
		}
		if len(c.Embedding) != len(embedding) {
			s.mu.RUnlock()
			return nil, domain.ErrVectorStoreFailed.Wrap(fmt.Errorf("query has %d dimensions, stored chunk has %d", len(embedding), len(c.Embedding)))
		}
		c.Score = cosine(embedding, c.Embedding)
		candidates = append(candidates, c)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(candidates, func(a, b domain.Chunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (s *MemoryStore) Delete(ctx context.Context, filter domain.ChunkFilter) error {
	if filter.IsEmpty() {
		return domain.ErrEmptyChunkFilter
	}
	if err := ctx.Err(); err != nil {
		return domain.ErrVectorStoreFailed.Wrap(err)
	}

	s.mu.Lock()
	s.chunks = slices.DeleteFunc(s.chunks, func(c domain.Chunk) bool {
		return filter.Matches(c.Metadata)
	})
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
