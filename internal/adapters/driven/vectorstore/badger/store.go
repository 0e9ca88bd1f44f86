// Package badger stores embeddings in a BadgerDB key-value store.
//
// Keys have the form emb:<document>:<chunk>, so one document's embeddings
// share a prefix and are removed together with DropPrefix.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.EmbeddingStore = (*Store)(nil)

const keyPrefix = "emb:"

// Store wraps a BadgerDB instance.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	log *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.log.Error(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.log.Warn(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.log.Info(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.log.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a BadgerDB database in dir, creating it if needed.
// An empty dir opens an in-memory database.
func Open(dir string) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}

	log := logger.Component("badger")
	opts.Logger = &badgerLogger{log: log}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func docPrefix(documentID string) []byte {
	return []byte(keyPrefix + documentID + ":")
}

func makeKey(key domain.EmbeddingKey) []byte {
	return append(docPrefix(key.DocumentID), key.ChunkID...)
}

// Put stores the vector unless the key already exists.
func (s *Store) Put(_ context.Context, key domain.EmbeddingKey, vector []float32) error {
	if err := vectorstore.CheckKey(key); err != nil {
		return err
	}
	k := makeKey(key)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return fmt.Errorf("%w: embedding %s", domain.ErrAlreadyExists, key)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("checking embedding %s: %w", key, err)
		}
		return txn.Set(k, vectorstore.Encode(vector))
	})
}

// Get returns the vector for key.
func (s *Store) Get(_ context.Context, key domain.EmbeddingKey) ([]float32, error) {
	if err := vectorstore.CheckKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading embedding %s: %w", key, err)
	}
	return vectorstore.Decode(data)
}

// Scan iterates each document's key prefix in key order.
func (s *Store) Scan(
	ctx context.Context,
	documentIDs []string,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	return s.db.View(func(txn *badger.Txn) error {
		for _, docID := range documentIDs {
			if err := vectorstore.CheckID(docID); err != nil {
				return err
			}
			prefix := docPrefix(docID)
			if err := s.scanPrefix(ctx, txn, docID, prefix, fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) scanPrefix(
	ctx context.Context,
	txn *badger.Txn,
	docID string,
	prefix []byte,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		key := domain.EmbeddingKey{
			DocumentID: docID,
			ChunkID:    string(item.Key()[len(prefix):]),
		}
		data, err := item.ValueCopy(nil)
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
	return nil
}

// DeleteDocument drops every key of the document.
func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	if err := vectorstore.CheckID(documentID); err != nil {
		return err
	}
	if err := s.db.DropPrefix(docPrefix(documentID)); err != nil {
		return fmt.Errorf("deleting embeddings of %s: %w", documentID, err)
	}
	s.log.Debug("dropped document embeddings", "document", documentID)
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
