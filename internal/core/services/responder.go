package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Responder turns retrieved chunks and conversation history into an answer.
type Responder struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	timeout time.Duration
	opts    driven.GenerateOptions
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithPromptStore loads the framing instructions from store.
func WithPromptStore(store driven.PromptStore) ResponderOption {
	return func(r *Responder) { r.prompts = store }
}

// WithGenerateTimeout bounds each language model call.
func WithGenerateTimeout(d time.Duration) ResponderOption {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithGenerateOptions sets the generation parameters.
func WithGenerateOptions(opts driven.GenerateOptions) ResponderOption {
	return func(r *Responder) { r.opts = opts }
}

// NewResponder creates a responder over llm.
func NewResponder(llm driven.LLMService, opts ...ResponderOption) *Responder {
	r := &Responder{llm: llm, timeout: domain.DefaultLLMTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond answers question from chunks. History must be in chronological
// order; drafts in it are skipped. With no chunks it returns the fixed
// no-information answer without calling the model.
func (r *Responder) Respond(
	ctx context.Context,
	question string,
	history []domain.Message,
	chunks []domain.ScoredChunk,
) (string, []domain.Source, error) {
	sources := make([]domain.Source, 0, len(chunks))
	if len(chunks) == 0 {
		return domain.NoRelevantInformationAnswer, sources, nil
	}
	if r.llm == nil {
		return "", nil, domain.ErrLLMUnavailable
	}

	for _, c := range chunks {
		sources = append(sources, c.Source())
	}

	prompt := r.BuildPrompt(question, history, chunks)
	logger.Debug("respond: prompt of %d bytes with %d chunks and %d history messages",
		len(prompt), len(chunks), len(history))

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	answer, err := r.llm.Generate(genCtx, prompt, r.opts)
	if err != nil {
		return "", nil, domain.WrapProviderError(domain.ProviderLLM, fmt.Errorf("generate answer: %w", err))
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Warn("respond: language model returned no text")
		answer = domain.EmptyAnswerApology
	}
	return answer, sources, nil
}

// BuildPrompt assembles the answer prompt: instruction, context blocks,
// previous conversation, the question and the closing instruction.
func (r *Responder) BuildPrompt(question string, history []domain.Message, chunks []domain.ScoredChunk) string {
	var b strings.Builder

	b.WriteString(r.instruction(driven.PromptAnswerSystem, domain.AnswerSystemInstruction))
	b.WriteString("\n\n")

	b.WriteString("Context information:\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[Document %d: %s]\n%s\n\n", i+1, c.DocumentTitle, c.Chunk.Content)
	}

	turns := 0
	for _, m := range history {
		if m.IsDraft() {
			continue
		}
		if turns == 0 {
			b.WriteString("Previous conversation:\n\n")
		}
		role := "Assistant"
		if m.Role == domain.RoleUser {
			role = "Human"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, m.Content)
		turns++
	}

	fmt.Fprintf(&b, "Human question: %s\n\n", question)
	b.WriteString(r.instruction(driven.PromptAnswerClosing, domain.AnswerClosingInstruction))
	return b.String()
}

func (r *Responder) instruction(name, fallback string) string {
	if r.prompts == nil {
		return fallback
	}
	text, err := r.prompts.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}
