// Command docrag indexes documents and answers questions about them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/custodia-labs/docrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/docrag/internal/adapters/driven/config/env"
	"github.com/custodia-labs/docrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docrag/internal/adapters/driven/queue"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore/badger"
	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore/bbolt"
	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore/filesystem"
	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore/postgres"
	"github.com/custodia-labs/docrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/docrag/internal/chunker"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/services"
	"github.com/custodia-labs/docrag/internal/extractors"
	"github.com/custodia-labs/docrag/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// drainTimeout bounds how long background tasks may run after a command returns.
const drainTimeout = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	home, err := homeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}

	app, err := wire(ctx, home)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	defer app.close()

	cli.SetVersion(version)
	cli.SetServices(app.services)

	execErr := cli.Execute(ctx)

	// Uploads and unanswered questions finish before the process exits.
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := app.queue.Drain(drainCtx); err != nil {
		logger.Warn("background tasks interrupted: %v", err)
	}

	return execErr
}

// homeDir returns $DOCRAG_HOME, or ~/.docrag.
func homeDir() (string, error) {
	if dir := os.Getenv("DOCRAG_HOME"); dir != "" {
		return dir, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(userHome, ".docrag"), nil
}

// application holds everything that must be released on exit.
type application struct {
	services cli.Services
	queue    *queue.Queue
	closers  []func() error
}

func (a *application) close() {
	if a.queue != nil {
		_ = a.queue.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close: %v", err)
		}
	}
}

// wire builds the stores, providers and services from the settings in home.
func wire(ctx context.Context, home string) (*application, error) {
	app := &application{}

	fileConfig, err := file.NewConfigStore(home)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	configStore, err := env.New(fileConfig, env.WithDotEnv(filepath.Join(home, ".env")))
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	store, err := sqlite.NewStore(filepath.Join(home, "data"))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	app.closers = append(app.closers, store.Close)

	embeddings, err := openEmbeddingStore(ctx, home, settings.Storage, store)
	if err != nil {
		app.close()
		return nil, err
	}
	app.closers = append(app.closers, embeddings.Close)

	fileStore, err := files.NewStore(filepath.Join(home, "uploads"))
	if err != nil {
		app.close()
		return nil, fmt.Errorf("open upload store: %w", err)
	}

	providers, err := ai.Init(settings)
	if err != nil {
		// Settings commands must still work with a broken provider.
		logger.Warn("%v", err)
		providers = &ai.InitResult{}
	}
	for _, w := range providers.Warnings {
		logger.Debug("%s", w)
	}
	app.closers = append(app.closers, func() error {
		providers.Close()
		return nil
	})

	chunk, err := chunker.New(settings.Chunking)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		app.close()
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	tasks, err := queue.New(settings.Worker.Concurrency)
	if err != nil {
		app.close()
		return nil, err
	}
	app.queue = tasks

	docs := store.DocumentStore()
	indexer := services.NewIndexingService(
		docs, fileStore, extractors.ForStrategy(settings.Chunking.Strategy), chunk, providers.EmbeddingService, embeddings,
	)
	documentService := services.NewDocumentService(docs, fileStore, embeddings, tasks, indexer)

	retriever := services.NewRetriever(docs, embeddings, providers.QueryEmbeddingService, settings.Retrieval)
	responder := services.NewResponder(providers.LLMService,
		services.WithPromptStore(prompts),
		services.WithGenerateTimeout(settings.LLM.Timeout),
	)
	queryService := services.NewQueryService(
		docs, store.ConversationStore(), retriever, responder, tasks,
		services.WithMaxAttempts(settings.Worker.MaxAttempts),
	)

	app.services = cli.Services{
		Document: documentService,
		Query:    queryService,
		Settings: settingsService,
		OwnerID:  settings.UserID,
		InboxDir: settings.InboxDir,
	}
	return app, nil
}

// openEmbeddingStore opens the configured embedding backend.
// The sqlite backend shares the metadata database.
func openEmbeddingStore(
	ctx context.Context,
	home string,
	cfg domain.StorageSettings,
	store *sqlite.Store,
) (driven.EmbeddingStore, error) {
	dir := filepath.Join(home, "embeddings")

	var (
		embeddings driven.EmbeddingStore
		err        error
	)
	switch cfg.EmbeddingBackend {
	case domain.EmbeddingBackendFilesystem:
		embeddings, err = filesystem.New(dir)
	case domain.EmbeddingBackendBadger:
		embeddings, err = badger.Open(filepath.Join(dir, "badger"))
	case domain.EmbeddingBackendBolt:
		embeddings, err = bbolt.Open(filepath.Join(dir, "embeddings.db"))
	case domain.EmbeddingBackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("%w: storage.postgres_dsn is required for the postgres backend",
				domain.ErrInvalidInput)
		}
		embeddings, err = postgres.Open(ctx, cfg.PostgresDSN)
	default:
		return store.EmbeddingStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s embedding store: %w", cfg.EmbeddingBackend, err)
	}
	return embeddings, nil
}
