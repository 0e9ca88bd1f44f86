// Package postgres stores embeddings in PostgreSQL using the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.EmbeddingStore = (*Store)(nil)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS chunk_embeddings (
    document_id TEXT NOT NULL,
    chunk_id    TEXT NOT NULL,
    embedding   vector NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (document_id, chunk_id)
);`

// Store is a pgvector-backed embedding store.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate embeddings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Put inserts the vector unless the key already exists.
func (s *Store) Put(ctx context.Context, key domain.EmbeddingKey, vector []float32) error {
	if err := vectorstore.CheckKey(key); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chunk_embeddings (document_id, chunk_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, chunk_id) DO NOTHING`,
		key.DocumentID, key.ChunkID, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("store embedding %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, key)
	}
	return nil
}

// Get returns the vector for key.
func (s *Store) Get(ctx context.Context, key domain.EmbeddingKey) ([]float32, error) {
	if err := vectorstore.CheckKey(key); err != nil {
		return nil, err
	}
	var v pgvector.Vector
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM chunk_embeddings WHERE document_id = $1 AND chunk_id = $2`,
		key.DocumentID, key.ChunkID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load embedding %s: %w", key, err)
	}
	return v.Slice(), nil
}

// Scan streams the embeddings of the given documents.
func (s *Store) Scan(
	ctx context.Context,
	documentIDs []string,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	if len(documentIDs) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, chunk_id, embedding FROM chunk_embeddings
		WHERE document_id = ANY($1)
		ORDER BY document_id, chunk_id`, pq.Array(documentIDs))
	if err != nil {
		return fmt.Errorf("scan embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key domain.EmbeddingKey
			v   pgvector.Vector
		)
		if err := rows.Scan(&key.DocumentID, &key.ChunkID, &v); err != nil {
			return fmt.Errorf("scan embedding row: %w", err)
		}
		if err := fn(key, v.Slice()); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DeleteDocument removes every embedding of a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunk_embeddings WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete embeddings of %s: %w", documentID, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
