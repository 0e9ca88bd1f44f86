package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore on the embeddings table.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// Put stores the vector for key. Existing keys are never overwritten.
func (s *embeddingStore) Put(ctx context.Context, key domain.EmbeddingKey, vector []float32) error {
	if err := vectorstore.CheckKey(key); err != nil {
		return err
	}
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO embeddings (document_id, chunk_id, dimensions, vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id, chunk_id) DO NOTHING
	`, key.DocumentID, key.ChunkID, len(vector), float32SliceToBytes(vector))
	if err != nil {
		return fmt.Errorf("storing embedding %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, key)
	}
	return nil
}

// Get returns the vector for key.
func (s *embeddingStore) Get(ctx context.Context, key domain.EmbeddingKey) ([]float32, error) {
	if err := vectorstore.CheckKey(key); err != nil {
		return nil, err
	}
	var blob []byte
	err := s.store.db.QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE document_id = ? AND chunk_id = ?", key.DocumentID, key.ChunkID,
	).Scan(&blob)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("loading embedding %s: %w", key, err)
	}
	return bytesToFloat32Slice(blob), nil
}

// Scan calls fn for every embedding of the given documents.
func (s *embeddingStore) Scan(
	ctx context.Context,
	documentIDs []string,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	if len(documentIDs) == 0 {
		return nil
	}

	args := make([]any, len(documentIDs))
	for i, id := range documentIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",")

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, chunk_id, vector FROM embeddings
		WHERE document_id IN (`+placeholders+`)
		ORDER BY document_id, chunk_id
	`, args...)
	if err != nil {
		return fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key  domain.EmbeddingKey
			blob []byte
		)
		if err := rows.Scan(&key.DocumentID, &key.ChunkID, &blob); err != nil {
			return fmt.Errorf("scanning embedding: %w", err)
		}
		if err := fn(key, bytesToFloat32Slice(blob)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating embeddings: %w", err)
	}
	return nil
}

// DeleteDocument removes every embedding of a document.
func (s *embeddingStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// Close is a no-op; the database is owned by Store.
func (s *embeddingStore) Close() error {
	return nil
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
