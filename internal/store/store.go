// Package store хранит чанки с эмбеддингами и ищет ближайших соседей.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// Store is a vector store with a fixed embedding dimension and distance metric.
// Ids are assigned on insert, increase monotonically and are never reused.
type Store interface {
	Add(ctx context.Context, content string, embedding []float32) (int64, error)
	// AddBatch stores all records in one transaction and returns their ids
	// in input order. On error nothing is stored.
	AddBatch(ctx context.Context, records []model.Record) ([]int64, error)
	// Query returns at most topK chunks by ascending distance; ties go to
	// the earlier insert.
	Query(ctx context.Context, embedding []float32, topK int) ([]model.Chunk, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Options are shared by all backends.
type Options struct {
	Dimension int
	Metric    vector.Metric
}

func (o Options) validate() error {
	if o.Dimension <= 0 {
		return fmt.Errorf("store: dimension must be positive, got %d", o.Dimension)
	}
	if _, err := vector.ParseMetric(string(o.Metric)); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func checkRecords(dim int, records []model.Record) error {
	if len(records) == 0 {
		return apperr.New(apperr.InvalidRequest, "no records to store")
	}
	for i, r := range records {
		if strings.TrimSpace(r.Content) == "" {
			return apperr.New(apperr.InvalidRequest, "record %d: content is empty", i)
		}
		if len(r.Embedding) != dim {
			return apperr.New(apperr.InvalidRequest,
				"record %d: embedding has %d dimensions, store expects %d", i, len(r.Embedding), dim)
		}
	}
	return nil
}

func checkQuery(dim int, q []float32, topK int) error {
	if topK <= 0 {
		return apperr.New(apperr.InvalidRequest, "top_k must be at least 1, got %d", topK)
	}
	if len(q) != dim {
		return apperr.New(apperr.InvalidRequest,
			"query embedding has %d dimensions, store expects %d", len(q), dim)
	}
	return nil
}

// rank sorts by (distance, id) and keeps the first topK.
func rank(chunks []model.Chunk, topK int) []model.Chunk {
	slices.SortStableFunc(chunks, func(a, b model.Chunk) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks
}

func unavailable(err error, msg string) error {
	return apperr.Wrap(apperr.StorageUnavailable, err, msg)
}

func addOne(ctx context.Context, s Store, content string, embedding []float32) (int64, error) {
	ids, err := s.AddBatch(ctx, []model.Record{{Content: content, Embedding: embedding}})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}
