package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureSchema создаёт расширение pgvector и таблицу чанков нужной размерности.
func ensureSchema(ctx context.Context, db *sql.DB, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dim),
	}

	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return checkDimension(ctx, db, dim)
}

// checkDimension сверяет размерность существующей колонки с конфигом.
func checkDimension(ctx context.Context, db *sql.DB, dim int) error {
	var got int
	err := db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'
	`).Scan(&got)
	if err != nil {
		return fmt.Errorf("read embedding dimension: %w", err)
	}
	if got != dim {
		return fmt.Errorf("chunks.embedding has dimension %d, configured %d", got, dim)
	}
	return nil
}

// sqliteSchema stores embeddings as little-endian float32 blobs.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	dim INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
