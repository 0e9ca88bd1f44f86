package domain

import "time"

const unknownDescription = "Unknown"

// ChunkingStrategy selects how extracted text is split into chunks.
type ChunkingStrategy string

// Available chunking strategies.
const (
	// ChunkingParagraph packs paragraphs into character-bounded chunks.
	ChunkingParagraph ChunkingStrategy = "paragraph"

	// ChunkingToken packs tokens into token-bounded windows.
	ChunkingToken ChunkingStrategy = "token"

	// ChunkingMarkdown splits on markdown headers first.
	ChunkingMarkdown ChunkingStrategy = "markdown"
)

// IsValid returns true if the strategy is recognised.
func (s ChunkingStrategy) IsValid() bool {
	switch s {
	case ChunkingParagraph, ChunkingToken, ChunkingMarkdown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s ChunkingStrategy) String() string {
	return string(s)
}

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI or any OpenAI-compatible API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderPlaceholder produces deterministic vectors without a model.
	// Only valid for embeddings, for offline operation.
	AIProviderPlaceholder AIProvider = "placeholder"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderPlaceholder:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible (cloud or local)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderPlaceholder:
		return "Placeholder (offline, not semantic)"
	default:
		return unknownDescription
	}
}

// EmbeddingBackend selects where embeddings are persisted.
type EmbeddingBackend string

// Available embedding backends.
const (
	EmbeddingBackendSQLite     EmbeddingBackend = "sqlite"
	EmbeddingBackendFilesystem EmbeddingBackend = "filesystem"
	EmbeddingBackendBadger     EmbeddingBackend = "badger"
	EmbeddingBackendBolt       EmbeddingBackend = "bbolt"
	EmbeddingBackendPostgres   EmbeddingBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b EmbeddingBackend) IsValid() bool {
	switch b {
	case EmbeddingBackendSQLite, EmbeddingBackendFilesystem, EmbeddingBackendBadger,
		EmbeddingBackendBolt, EmbeddingBackendPostgres:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b EmbeddingBackend) String() string {
	return string(b)
}

// ChunkingSettings holds chunker configuration.
type ChunkingSettings struct {
	// Strategy selects the chunker.
	Strategy ChunkingStrategy

	// MaxSize is the maximum chunk length in characters.
	MaxSize int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int

	// TokenModel selects the tokenizer for the token strategy.
	TokenModel string

	// TokenSize is the maximum chunk length in tokens.
	TokenSize int

	// TokenOverlap is the number of tokens shared by consecutive chunks.
	TokenOverlap int
}

// RetrievalSettings holds retriever configuration.
type RetrievalSettings struct {
	// TopK is the maximum number of chunks returned.
	TopK int

	// Threshold is the minimum cosine similarity of a returned chunk.
	Threshold float64
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the embedding vector size.
	Dimensions int

	// RateLimit caps provider calls per second. Zero disables limiting.
	RateLimit float64

	// Fallback substitutes placeholder vectors when the provider fails.
	Fallback bool
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RateLimit caps provider calls per second. Zero disables limiting.
	RateLimit float64

	// Timeout bounds a single generation call.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderPlaceholder {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StorageSettings holds persistence configuration.
type StorageSettings struct {
	// EmbeddingBackend selects the embedding store.
	EmbeddingBackend EmbeddingBackend

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string
}

// WorkerSettings holds background task configuration.
type WorkerSettings struct {
	// Concurrency is the number of tasks run in parallel.
	Concurrency int

	// MaxAttempts bounds the attempts of a query answer task.
	MaxAttempts int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// UserID identifies the local user. Owns uploaded documents and conversations.
	UserID string

	// InboxDir is the directory watched for new uploads. Empty disables watching.
	InboxDir string

	Chunking  ChunkingSettings
	Retrieval RetrievalSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Storage   StorageSettings
	Worker    WorkerSettings
}

// Defaults used by DefaultAppSettings.
const (
	DefaultUserID            = "local"
	DefaultChunkSize         = 1000
	DefaultChunkOverlap      = 200
	DefaultTokenModel        = "gpt-3.5-turbo"
	DefaultTokenChunkSize    = 512
	DefaultTokenChunkOverlap = 50
	DefaultTopK              = 5
	DefaultThreshold         = 0.5
	DefaultWorkerConcurrency = 4
	DefaultMaxAttempts       = 3
	DefaultLLMTimeout        = 60 * time.Second
)

// DefaultAppSettings returns settings with sensible defaults.
// Both AI providers default to a local Ollama.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		UserID: DefaultUserID,
		Chunking: ChunkingSettings{
			Strategy:     ChunkingParagraph,
			MaxSize:      DefaultChunkSize,
			Overlap:      DefaultChunkOverlap,
			TokenModel:   DefaultTokenModel,
			TokenSize:    DefaultTokenChunkSize,
			TokenOverlap: DefaultTokenChunkOverlap,
		},
		Retrieval: RetrievalSettings{
			TopK:      DefaultTopK,
			Threshold: DefaultThreshold,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      DefaultEmbeddingModels()[AIProviderOllama],
			Dimensions: DefaultEmbeddingDimensions,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
			Timeout:  DefaultLLMTimeout,
		},
		Storage: StorageSettings{
			EmbeddingBackend: EmbeddingBackendSQLite,
		},
		Worker: WorkerSettings{
			Concurrency: DefaultWorkerConcurrency,
			MaxAttempts: DefaultMaxAttempts,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderPlaceholder,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:      "nomic-embed-text",
		AIProviderOpenAI:      "text-embedding-3-small",
		AIProviderPlaceholder: "placeholder",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
