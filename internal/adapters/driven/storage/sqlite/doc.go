// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements several store interfaces over a single database connection:
//
//   - DocumentStore: documents and their chunks
//   - ConversationStore: conversations and messages
//   - EmbeddingStore: chunk vectors as little-endian float32 blobs
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Concurrency
//
// The database runs in WAL mode with a busy timeout. Every operation commits
// on its own; state transitions use conditional updates so concurrent
// workers never both claim a document or finalize a message.
package sqlite
