package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// PgStore — хранилище на Postgres с расширением pgvector.
type PgStore struct {
	db    *sql.DB
	opts  Options
	query string
}

func NewPgStore(ctx context.Context, conn string, opts Options) (*PgStore, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable(err, "postgres is unreachable")
	}
	s, err := NewPgStoreFromDB(ctx, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPgStoreFromDB prepares the schema on an already opened database.
func NewPgStoreFromDB(ctx context.Context, db *sql.DB, opts Options) (*PgStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := ensureSchema(ctx, db, opts.Dimension); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PgStore{db: db, opts: opts, query: searchQuery(opts.Metric)}, nil
}

// <-> is L2 distance, <=> is cosine distance.
func searchQuery(m vector.Metric) string {
	op := "<->"
	if m == vector.Cosine {
		op = "<=>"
	}
	return fmt.Sprintf(`
		SELECT id, content, embedding %s $1 AS distance
		FROM chunks
		ORDER BY distance, id
		LIMIT $2
	`, op)
}

func (s *PgStore) Add(ctx context.Context, content string, embedding []float32) (int64, error) {
	return addOne(ctx, s, content, embedding)
}

func (s *PgStore) AddBatch(ctx context.Context, records []model.Record) ([]int64, error) {
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
		err := tx.QueryRowContext(ctx, `
			INSERT INTO chunks (content, embedding)
			VALUES ($1, $2)
			RETURNING id
		`, r.Content, pgvector.NewVector(r.Embedding)).Scan(&ids[i])
		if err != nil {
			return nil, unavailable(err, "insert chunk")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable(err, "commit chunks")
	}
	return ids, nil
}

func (s *PgStore) Query(ctx context.Context, embedding []float32, topK int) ([]model.Chunk, error) {
	if err := checkQuery(s.opts.Dimension, embedding, topK); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, unavailable(err, "search chunks")
	}
	defer rows.Close()

	res := []model.Chunk{}
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.Content, &c.Distance); err != nil {
			return nil, unavailable(err, "scan chunk")
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "search chunks")
	}
	return res, nil
}

func (s *PgStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, unavailable(err, "count chunks")
	}
	return n, nil
}

func (s *PgStore) Close() error { return s.db.Close() }
