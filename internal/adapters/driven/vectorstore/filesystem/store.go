// Package filesystem stores embeddings as one file per chunk under
// <root>/doc_<document>/chunk_<chunk>.vec.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.EmbeddingStore = (*Store)(nil)

const vectorExt = ".vec"

// Store is a directory of vector files.
type Store struct {
	root string
}

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating embeddings directory: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) docDir(documentID string) string {
	return filepath.Join(s.root, "doc_"+documentID)
}

func (s *Store) path(key domain.EmbeddingKey) string {
	return filepath.Join(s.docDir(key.DocumentID), "chunk_"+key.ChunkID+vectorExt)
}

// Put writes the vector to a temporary file and links it into place.
// Linking fails if the key exists, so a stored vector is never replaced.
func (s *Store) Put(_ context.Context, key domain.EmbeddingKey, vector []float32) error {
	if err := vectorstore.CheckKey(key); err != nil {
		return err
	}

	dir := s.docDir(key.DocumentID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(vectorstore.Encode(vector)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing embedding %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing embedding %s: %w", key, err)
	}

	if err := os.Link(tmp.Name(), s.path(key)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, key)
		}
		return fmt.Errorf("storing embedding %s: %w", key, err)
	}
	return nil
}

// Get reads the vector for key.
func (s *Store) Get(_ context.Context, key domain.EmbeddingKey) ([]float32, error) {
	if err := vectorstore.CheckKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading embedding %s: %w", key, err)
	}
	return vectorstore.Decode(data)
}

// Scan reads every vector file of the given documents in name order.
func (s *Store) Scan(
	ctx context.Context,
	documentIDs []string,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	for _, docID := range documentIDs {
		if err := vectorstore.CheckID(docID); err != nil {
			return err
		}
		entries, err := os.ReadDir(s.docDir(docID))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("listing embeddings of %s: %w", docID, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, vectorExt) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			key := domain.EmbeddingKey{
				DocumentID: docID,
				ChunkID:    strings.TrimSuffix(strings.TrimPrefix(name, "chunk_"), vectorExt),
			}
			data, err := os.ReadFile(filepath.Join(s.docDir(docID), name))
			if err != nil {
				return fmt.Errorf("reading embedding %s: %w", key, err)
			}
			vector, err := vectorstore.Decode(data)
			if err != nil {
				return fmt.Errorf("decoding embedding %s: %w", key, err)
			}
			if err := fn(key, vector); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteDocument removes the document's directory.
func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	if err := vectorstore.CheckID(documentID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.docDir(documentID)); err != nil {
		return fmt.Errorf("deleting embeddings of %s: %w", documentID, err)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
