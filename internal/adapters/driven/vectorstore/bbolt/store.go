// Package bbolt stores embeddings in a bbolt file with one nested bucket per document.
package bbolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.EmbeddingStore = (*Store)(nil)

var rootBucket = []byte("embeddings")

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating bbolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating root bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores the vector unless the key already exists.
func (s *Store) Put(_ context.Context, key domain.EmbeddingKey, vector []float32) error {
	if err := vectorstore.CheckKey(key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		doc, err := tx.Bucket(rootBucket).CreateBucketIfNotExists([]byte(key.DocumentID))
		if err != nil {
			return fmt.Errorf("creating document bucket: %w", err)
		}
		if doc.Get([]byte(key.ChunkID)) != nil {
			return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, key)
		}
		return doc.Put([]byte(key.ChunkID), vectorstore.Encode(vector))
	})
}

// Get returns the vector for key.
func (s *Store) Get(_ context.Context, key domain.EmbeddingKey) ([]float32, error) {
	if err := vectorstore.CheckKey(key); err != nil {
		return nil, err
	}
	var vector []float32
	err := s.db.View(func(tx *bolt.Tx) error {
		doc := tx.Bucket(rootBucket).Bucket([]byte(key.DocumentID))
		if doc == nil {
			return domain.ErrNotFound
		}
		data := doc.Get([]byte(key.ChunkID))
		if data == nil {
			return domain.ErrNotFound
		}
		// Decode copies; bbolt values are only valid inside the transaction.
		var err error
		vector, err = vectorstore.Decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// Scan walks each document bucket in key order.
func (s *Store) Scan(
	ctx context.Context,
	documentIDs []string,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	return s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		for _, docID := range documentIDs {
			if err := vectorstore.CheckID(docID); err != nil {
				return err
			}
			doc := root.Bucket([]byte(docID))
			if doc == nil {
				continue
			}
			err := doc.ForEach(func(k, v []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				key := domain.EmbeddingKey{DocumentID: docID, ChunkID: string(k)}
				vector, err := vectorstore.Decode(v)
				if err != nil {
					return fmt.Errorf("decoding embedding %s: %w", key, err)
				}
				return fn(key, vector)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDocument removes the document's bucket.
func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	if err := vectorstore.CheckID(documentID); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		if root.Bucket([]byte(documentID)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(documentID))
	})
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
