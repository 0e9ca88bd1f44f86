package driven

import (
	"context"
	"io"
)

// FileStore keeps uploaded files.
type FileStore interface {
	// Save writes content under a new unique name with the given extension.
	// Returns the stored name, relative to the store.
	Save(ctx context.Context, ext string, content io.Reader) (string, error)

	// Path resolves a stored name to a readable filesystem path.
	Path(name string) string

	// Remove deletes a stored file. Removing a missing file is not an error.
	Remove(ctx context.Context, name string) error
}
