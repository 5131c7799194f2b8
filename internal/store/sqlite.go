package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// SQLiteStore is a single-file store for local runs. Ranking happens in Go
// over every row, which is fine for small corpora.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

func NewSQLiteStore(ctx context.Context, path string, opts Options) (*SQLiteStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, opts: opts}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return unavailable(err, "sqlite pragma")
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}

	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM chunks WHERE dim <> ? LIMIT 1`, s.opts.Dimension).Scan(&dim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("read embedding dimension: %w", err)
	}
	return fmt.Errorf("chunks table holds %d-dimensional embeddings, configured %d", dim, s.opts.Dimension)
}

func (s *SQLiteStore) Add(ctx context.Context, content string, embedding []float32) (int64, error) {
	return addOne(ctx, s, content, embedding)
}

func (s *SQLiteStore) AddBatch(ctx context.Context, records []model.Record) ([]int64, error) {
	if err := checkRecords(s.opts.Dimension, records); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, len(records))
	for i, r := range records {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (content, embedding, dim) VALUES (?, ?, ?)`,
			r.Content, vector.Encode(r.Embedding), len(r.Embedding))
		if err != nil {
			return nil, unavailable(err, "insert chunk")
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, unavailable(err, "insert chunk")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable(err, "commit chunks")
	}
	return ids, nil
}

func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int) ([]model.Chunk, error) {
	if err := checkQuery(s.opts.Dimension, embedding, topK); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, unavailable(err, "search chunks")
	}
	defer rows.Close()

	chunks := []model.Chunk{}
	for rows.Next() {
		var (
			c    model.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Content, &blob); err != nil {
			return nil, unavailable(err, "scan chunk")
		}
		emb, err := vector.Decode(blob)
		if err != nil {
			return nil, unavailable(err, fmt.Sprintf("chunk %d", c.ID))
		}
		c.Distance = s.opts.Metric.Distance(embedding, emb)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "search chunks")
	}
	return rank(chunks, topK), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, unavailable(err, "count chunks")
	}
	return n, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
