package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// backends returns a fresh instance of every in-process backend.
func backends(t *testing.T, opts Options) map[string]Store {
	t.Helper()
	mem, err := NewMemoryStore(opts)
	require.NoError(t, err)
	lite, err := NewSQLiteStore(context.Background(), ":memory:", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]Store{"memory": mem, "sqlite": lite}
}

func l2(dim int) Options { return Options{Dimension: dim, Metric: vector.L2} }

func TestQuery_CatDog(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, l2(2)) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Add(ctx, "cat", []float32{1, 0})
			require.NoError(t, err)
			_, err = s.Add(ctx, "dog", []float32{0, 1})
			require.NoError(t, err)

			res, err := s.Query(ctx, []float32{0.9, 0.1}, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"cat"}, model.Contents(res))

			res, err = s.Query(ctx, []float32{0.9, 0.1}, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"cat", "dog"}, model.Contents(res))
			assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
		})
	}
}

func TestQuery_EmptyStore(t *testing.T) {
	for name, s := range backends(t, l2(2)) {
		t.Run(name, func(t *testing.T) {
			res, err := s.Query(context.Background(), []float32{1, 1}, 5)
			require.NoError(t, err)
			assert.NotNil(t, res)
			assert.Empty(t, res)
		})
	}
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, l2(2)) {
		t.Run(name, func(t *testing.T) {
			for _, c := range []string{"first", "second", "third"} {
				_, err := s.Add(ctx, c, []float32{1, 1})
				require.NoError(t, err)
			}
			res, err := s.Query(ctx, []float32{0, 0}, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"first", "second"}, model.Contents(res))
		})
	}
}

func TestQuery_SortedAndBounded(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, l2(1)) {
		t.Run(name, func(t *testing.T) {
			for _, x := range []float32{5, -3, 0.5, 9, 2, -1} {
				_, err := s.Add(ctx, "x", []float32{x})
				require.NoError(t, err)
			}
			res, err := s.Query(ctx, []float32{0}, 4)
			require.NoError(t, err)
			require.Len(t, res, 4)
			for i := 1; i < len(res); i++ {
				assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
			}
		})
	}
}

func TestQuery_Cosine(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, Options{Dimension: 2, Metric: vector.Cosine}) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Add(ctx, "far but aligned", []float32{10, 0})
			require.NoError(t, err)
			_, err = s.Add(ctx, "near but rotated", []float32{0.5, 0.5})
			require.NoError(t, err)

			res, err := s.Query(ctx, []float32{1, 0}, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"far but aligned"}, model.Contents(res))
		})
	}
}

func TestQuery_RejectsBadInput(t *testing.T) {
	for name, s := range backends(t, l2(2)) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Query(context.Background(), []float32{1, 0}, 0)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			_, err = s.Query(context.Background(), []float32{1, 0}, -3)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			_, err = s.Query(context.Background(), []float32{1, 0, 0}, 1)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
		})
	}
}

func TestAdd_RejectsBadRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, l2(2)) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Add(ctx, "x", []float32{1, 2, 3})
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			_, err = s.Add(ctx, "   ", []float32{1, 2})
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestAddBatch_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, l2(2)) {
		t.Run(name, func(t *testing.T) {
			_, err := s.AddBatch(ctx, []model.Record{
				{Content: "ok", Embedding: []float32{1, 0}},
				{Content: "bad", Embedding: []float32{1}},
			})
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			ids, err := s.AddBatch(ctx, []model.Record{
				{Content: "a", Embedding: []float32{1, 0}},
				{Content: "b", Embedding: []float32{0, 1}},
				{Content: "c", Embedding: []float32{1, 1}},
			})
			require.NoError(t, err)
			require.Len(t, ids, 3)
			assert.Less(t, ids[0], ids[1])
			assert.Less(t, ids[1], ids[2])

			n, err = s.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)
		})
	}
}

func TestMemoryStore_ConcurrentAdds(t *testing.T) {
	s, err := NewMemoryStore(l2(2))
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]int64, 50)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Add(context.Background(), "chunk", []float32{float32(i), 0})
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
}

func TestSQLiteStore_DimensionCheckOnReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/chunks.db"

	s, err := NewSQLiteStore(ctx, path, l2(2))
	require.NoError(t, err)
	_, err = s.Add(ctx, "cat", []float32{1, 0})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = NewSQLiteStore(ctx, path, l2(3))
	assert.Error(t, err)

	s, err = NewSQLiteStore(ctx, path, l2(2))
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestOptionsValidation(t *testing.T) {
	_, err := NewMemoryStore(Options{Dimension: 0, Metric: vector.L2})
	assert.Error(t, err)
	_, err = NewMemoryStore(Options{Dimension: 2, Metric: "dot"})
	assert.Error(t, err)
}
