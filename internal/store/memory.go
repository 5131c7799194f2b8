package store

import (
	"context"
	"sync"

	"github.com/katakuxiko/vectorbrain/internal/model"
)

type memRow struct {
	id        int64
	content   string
	embedding []float32
}

// MemoryStore keeps everything in process memory. Used in tests and with STORE_DRIVER=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	opts   Options
	rows   []memRow
	nextID int64
}

func NewMemoryStore(opts Options) (*MemoryStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{opts: opts, nextID: 1}, nil
}

func (s *MemoryStore) Add(ctx context.Context, content string, embedding []float32) (int64, error) {
	return addOne(ctx, s, content, embedding)
}

func (s *MemoryStore) AddBatch(ctx context.Context, records []model.Record) ([]int64, error) {
	if err := checkRecords(s.opts.Dimension, records); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err, "insert cancelled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(records))
	for i, r := range records {
		emb := make([]float32, len(r.Embedding))
		copy(emb, r.Embedding)
		s.rows = append(s.rows, memRow{id: s.nextID, content: r.Content, embedding: emb})
		ids[i] = s.nextID
		s.nextID++
	}
	return ids, nil
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int) ([]model.Chunk, error) {
	if err := checkQuery(s.opts.Dimension, embedding, topK); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err, "query cancelled")
	}

	s.mu.RLock()
	chunks := make([]model.Chunk, len(s.rows))
	for i, r := range s.rows {
		chunks[i] = model.Chunk{ID: r.id, Content: r.content, Distance: s.opts.Metric.Distance(embedding, r.embedding)}
	}
	s.mu.RUnlock()

	return rank(chunks, topK), nil
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
