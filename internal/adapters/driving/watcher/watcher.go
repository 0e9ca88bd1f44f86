// Package watcher uploads files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultSettle is how long a file must stay unchanged before it is uploaded.
const DefaultSettle = 500 * time.Millisecond

// ErrClosed is returned when Run is called on a closed watcher.
var ErrClosed = errors.New("watcher closed")

// Uploader stores a new document. driving.DocumentService satisfies it.
type Uploader interface {
	Upload(ctx context.Context, req driving.UploadRequest) (*domain.Document, error)
}

// Result reports the outcome of one upload.
type Result struct {
	Path     string
	Document *domain.Document
	Err      error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must be quiet before it is uploaded.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		w.settle = d
	}
}

// WithResults sends every upload outcome to ch. Sends never block.
func WithResults(ch chan<- Result) Option {
	return func(w *Watcher) {
		w.results = ch
	}
}

// Watcher uploads supported files created in a directory.
// Files are uploaded once they stop changing, so partially written files are skipped.
type Watcher struct {
	dir      string
	ownerID  string
	uploader Uploader
	settle   time.Duration
	results  chan<- Result
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	closed  bool
}

// New creates a watcher for dir that uploads on behalf of ownerID.
func New(dir, ownerID string, uploader Uploader, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		ownerID:  ownerID,
		uploader: uploader,
		settle:   DefaultSettle,
		log:      logger.Component("watcher"),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("inbox: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching inbox", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				w.Close()
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				w.Close()
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// Close stops pending uploads and waits for running ones.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// handleEvent schedules an upload for created files and delays it while they keep changing.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if timer, ok := w.pending[path]; ok {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			if timer.Stop() {
				w.wg.Done()
			}
			delete(w.pending, path)
			return
		}
		// A timer that already fired is uploading; let it finish.
		if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && timer.Stop() {
			timer.Reset(w.settle)
		}
		return
	}

	if !event.Has(fsnotify.Create) || !shouldUpload(path) {
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.upload(ctx, path)
	})
	w.log.Debug("new file in inbox", "path", path)
}

// upload sends one file to the uploader.
func (w *Watcher) upload(ctx context.Context, path string) {
	doc, err := w.uploadFile(ctx, path)
	if err != nil {
		w.log.Error("upload failed", "path", path, "error", err)
	} else {
		w.log.Info("uploaded", "path", path, "document", doc.ID)
	}

	if w.results != nil {
		select {
		case w.results <- Result{Path: path, Document: doc, Err: err}:
		default:
		}
	}
}

func (w *Watcher) uploadFile(ctx context.Context, path string) (*domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return w.uploader.Upload(ctx, driving.UploadRequest{
		OwnerID:  w.ownerID,
		Filename: filepath.Base(path),
		Content:  f,
	})
}

// shouldUpload reports whether a path names a visible file of a supported type.
func shouldUpload(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return false
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return false
	}
	_, err := domain.FileTypeFromFilename(name)
	return err == nil
}
