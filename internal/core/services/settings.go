package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyUserID           = "user.id"
	keyInbox            = "watch.inbox"
	keyChunkStrategy    = "chunking.strategy"
	keyChunkMaxSize     = "chunking.max_size"
	keyChunkOverlap     = "chunking.overlap"
	keyChunkTokenModel  = "chunking.token_model"
	keyChunkTokenSize   = "chunking.token_size"
	keyChunkTokenOver   = "chunking.token_overlap"
	keyRetrievalTopK    = "retrieval.top_k"
	keyRetrievalThresh  = "retrieval.threshold"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDimensions  = "embedding.dimensions"
	keyEmbedRateLimit   = "embedding.rate_limit"
	keyEmbedFallback    = "embedding.fallback"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMRateLimit     = "llm.rate_limit"
	keyLLMTimeout       = "llm.timeout"
	keyStorageBackend   = "storage.embedding_backend"
	keyStoragePGDSN     = "storage.postgres_dsn"
	keyWorkerConcurrent = "worker.concurrency"
	keyWorkerAttempts   = "worker.max_attempts"
)

// settingKind is how a raw setting value is parsed.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

type settingValue struct {
	key   string
	value any
}

type settingRule struct {
	kind     settingKind
	validate func(string) error
}

var settingRules = map[string]settingRule{
	keyUserID:           {kind: kindString, validate: nonEmpty},
	keyInbox:            {kind: kindString},
	keyChunkStrategy:    {kind: kindString, validate: validStrategy},
	keyChunkMaxSize:     {kind: kindInt},
	keyChunkOverlap:     {kind: kindInt},
	keyChunkTokenModel:  {kind: kindString},
	keyChunkTokenSize:   {kind: kindInt},
	keyChunkTokenOver:   {kind: kindInt},
	keyRetrievalTopK:    {kind: kindInt},
	keyRetrievalThresh:  {kind: kindFloat},
	keyEmbedProvider:    {kind: kindString, validate: validEmbeddingProvider},
	keyEmbedModel:       {kind: kindString},
	keyEmbedBaseURL:     {kind: kindString},
	keyEmbedAPIKey:      {kind: kindString},
	keyEmbedDimensions:  {kind: kindInt},
	keyEmbedRateLimit:   {kind: kindFloat},
	keyEmbedFallback:    {kind: kindBool},
	keyLLMProvider:      {kind: kindString, validate: validLLMProvider},
	keyLLMModel:         {kind: kindString},
	keyLLMBaseURL:       {kind: kindString},
	keyLLMAPIKey:        {kind: kindString},
	keyLLMRateLimit:     {kind: kindFloat},
	keyLLMTimeout:       {kind: kindDuration},
	keyStorageBackend:   {kind: kindString, validate: validBackend},
	keyStoragePGDSN:     {kind: kindString},
	keyWorkerConcurrent: {kind: kindInt},
	keyWorkerAttempts:   {kind: kindInt},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings. Missing keys take their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, d.Embedding.Provider)
	embedModel := s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[embedProvider])
	dims := s.getInt(keyEmbedDimensions, 0)
	if dims == 0 {
		dims = d.Embedding.Dimensions
		if known, ok := domain.EmbeddingDimensions()[embedModel]; ok {
			dims = known
		}
	}
	llmProvider := s.getProvider(keyLLMProvider, d.LLM.Provider)

	settings := &domain.AppSettings{
		UserID:   s.getString(keyUserID, d.UserID),
		InboxDir: s.configStore.GetString(keyInbox),
		Chunking: domain.ChunkingSettings{
			Strategy:     s.getStrategy(d.Chunking.Strategy),
			MaxSize:      s.getInt(keyChunkMaxSize, d.Chunking.MaxSize),
			Overlap:      s.getInt(keyChunkOverlap, d.Chunking.Overlap),
			TokenModel:   s.getString(keyChunkTokenModel, d.Chunking.TokenModel),
			TokenSize:    s.getInt(keyChunkTokenSize, d.Chunking.TokenSize),
			TokenOverlap: s.getInt(keyChunkTokenOver, d.Chunking.TokenOverlap),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:      s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
			Threshold: s.getFloat(keyRetrievalThresh, d.Retrieval.Threshold),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   embedProvider,
			Model:      embedModel,
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - each provider has its own
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: dims,
			RateLimit:  s.getFloat(keyEmbedRateLimit, 0),
			Fallback:   s.getBool(keyEmbedFallback, d.Embedding.Fallback),
		},
		LLM: domain.LLMSettings{
			Provider:  llmProvider,
			Model:     s.getString(keyLLMModel, domain.DefaultLLMModels()[llmProvider]),
			BaseURL:   s.configStore.GetString(keyLLMBaseURL),
			APIKey:    s.configStore.GetString(keyLLMAPIKey),
			RateLimit: s.getFloat(keyLLMRateLimit, 0),
			Timeout:   s.getDuration(keyLLMTimeout, d.LLM.Timeout),
		},
		Storage: domain.StorageSettings{
			EmbeddingBackend: s.getBackend(d.Storage.EmbeddingBackend),
			PostgresDSN:      s.configStore.GetString(keyStoragePGDSN),
		},
		Worker: domain.WorkerSettings{
			Concurrency: s.getInt(keyWorkerConcurrent, d.Worker.Concurrency),
			MaxAttempts: s.getInt(keyWorkerAttempts, d.Worker.MaxAttempts),
		},
	}

	return settings, nil
}

// Save persists application settings. Empty API keys are left untouched.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []settingValue{
		{keyUserID, settings.UserID},
		{keyInbox, settings.InboxDir},
		{keyChunkStrategy, settings.Chunking.Strategy.String()},
		{keyChunkMaxSize, settings.Chunking.MaxSize},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkTokenModel, settings.Chunking.TokenModel},
		{keyChunkTokenSize, settings.Chunking.TokenSize},
		{keyChunkTokenOver, settings.Chunking.TokenOverlap},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyRetrievalThresh, settings.Retrieval.Threshold},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedRateLimit, settings.Embedding.RateLimit},
		{keyEmbedFallback, settings.Embedding.Fallback},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMRateLimit, settings.LLM.RateLimit},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyStorageBackend, settings.Storage.EmbeddingBackend.String()},
		{keyStoragePGDSN, settings.Storage.PostgresDSN},
		{keyWorkerConcurrent, settings.Worker.Concurrency},
		{keyWorkerAttempts, settings.Worker.MaxAttempts},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, settingValue{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, settingValue{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return s.configStore.Save()
}

// Set parses and persists a single setting.
func (s *SettingsService) Set(key, value string) error {
	rule, ok := settingRules[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)
	if rule.validate != nil {
		if err := rule.validate(value); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
	}

	parsed, err := parseSetting(rule.kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return s.configStore.Save()
}

// Keys lists the recognised setting keys in order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingRules))
	for k := range settingRules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

// getDuration accepts a duration string or a number of seconds.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if str := s.configStore.GetString(key); str != "" {
		if d, err := time.ParseDuration(str); err == nil && d > 0 {
			return d
		}
	}
	if secs := s.configStore.GetFloat(key); secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getStrategy(defaultVal domain.ChunkingStrategy) domain.ChunkingStrategy {
	strategy := domain.ChunkingStrategy(s.configStore.GetString(keyChunkStrategy))
	if !strategy.IsValid() {
		return defaultVal
	}
	return strategy
}

func (s *SettingsService) getBackend(defaultVal domain.EmbeddingBackend) domain.EmbeddingBackend {
	backend := domain.EmbeddingBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

// ==================== Parsing ====================

func parseSetting(kind settingKind, value string) (any, error) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", value)
		}
		if n < 0 {
			return nil, fmt.Errorf("must not be negative: %d", n)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", value)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", value)
		}
		return b, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("not a positive duration: %q", value)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func nonEmpty(v string) error {
	if v == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func validStrategy(v string) error {
	if !domain.ChunkingStrategy(v).IsValid() {
		return fmt.Errorf("unknown chunking strategy %q", v)
	}
	return nil
}

func validEmbeddingProvider(v string) error {
	for _, p := range domain.AllEmbeddingProviders() {
		if string(p) == v {
			return nil
		}
	}
	return fmt.Errorf("provider %q does not support embeddings", v)
}

func validLLMProvider(v string) error {
	for _, p := range domain.AllLLMProviders() {
		if string(p) == v {
			return nil
		}
	}
	return fmt.Errorf("provider %q does not support text generation", v)
}

func validBackend(v string) error {
	if !domain.EmbeddingBackend(v).IsValid() {
		return fmt.Errorf("unknown embedding backend %q", v)
	}
	return nil
}
