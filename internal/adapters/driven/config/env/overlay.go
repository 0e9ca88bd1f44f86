// Package env overlays environment variables on a configuration store.
//
// A key such as "llm.api_key" is read from DOCRAG_LLM_API_KEY. Values are
// taken from the process environment first, then from an optional .env
// file, and finally from the wrapped store. Writes go to the wrapped store
// only, so secrets supplied through the environment are never saved.
package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Prefix starts every recognised variable name.
const Prefix = "DOCRAG_"

// Ensure Overlay implements the interface.
var _ driven.ConfigStore = (*Overlay)(nil)

// Overlay is a driven.ConfigStore that prefers environment values.
type Overlay struct {
	base     driven.ConfigStore
	dotenv   string
	lookup   func(string) (string, bool)
	mu       sync.RWMutex
	fileVars map[string]string
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithDotEnv reads variables from the given .env file. A missing file is ignored.
func WithDotEnv(path string) Option {
	return func(o *Overlay) { o.dotenv = path }
}

// WithLookup replaces os.LookupEnv. Used in tests.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(o *Overlay) { o.lookup = fn }
}

// New wraps base and reads the .env file, if one is configured.
func New(base driven.ConfigStore, opts ...Option) (*Overlay, error) {
	o := &Overlay{base: base, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.readDotEnv(); err != nil {
		return nil, err
	}
	return o, nil
}

// VarName returns the environment variable for a dotted key.
func VarName(key string) string {
	return Prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (o *Overlay) readDotEnv() error {
	vars := map[string]string{}
	if o.dotenv != "" {
		read, err := godotenv.Read(o.dotenv)
		switch {
		case err == nil:
			vars = read
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("read %s: %w", o.dotenv, err)
		}
	}

	o.mu.Lock()
	o.fileVars = vars
	o.mu.Unlock()
	return nil
}

// env returns the raw environment value for key.
func (o *Overlay) env(key string) (string, bool) {
	name := VarName(key)
	if v, ok := o.lookup(name); ok {
		return v, true
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fileVars[name]
	return v, ok
}

// Get returns the environment value as a string, or the stored value.
func (o *Overlay) Get(key string) (any, bool) {
	if v, ok := o.env(key); ok {
		return v, true
	}
	return o.base.Get(key)
}

// GetString retrieves a string configuration value.
func (o *Overlay) GetString(key string) string {
	if v, ok := o.env(key); ok {
		return v
	}
	return o.base.GetString(key)
}

// GetInt retrieves an integer configuration value.
// An unparsable environment value falls through to the store.
func (o *Overlay) GetInt(key string) int {
	if v, ok := o.env(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return o.base.GetInt(key)
}

// GetFloat retrieves a floating point configuration value.
func (o *Overlay) GetFloat(key string) float64 {
	if v, ok := o.env(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return o.base.GetFloat(key)
}

// GetBool retrieves a boolean configuration value.
func (o *Overlay) GetBool(key string) bool {
	if v, ok := o.env(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return o.base.GetBool(key)
}

// Set writes to the wrapped store.
func (o *Overlay) Set(key string, value any) error {
	return o.base.Set(key, value)
}

// Save persists the wrapped store.
func (o *Overlay) Save() error {
	return o.base.Save()
}

// Load reloads the wrapped store and the .env file.
func (o *Overlay) Load() error {
	if err := o.base.Load(); err != nil {
		return err
	}
	return o.readDotEnv()
}

// Path returns the wrapped store's path.
func (o *Overlay) Path() string {
	return o.base.Path()
}

// Overridden lists the keys among keys that the environment currently sets.
func (o *Overlay) Overridden(keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := o.env(k); ok {
			out = append(out, k)
		}
	}
	return out
}
