package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Token implements the interface.
var _ driven.Chunker = (*Token)(nil)

// fallbackEncoding is used when the model has no registered encoding.
const fallbackEncoding = "cl100k_base"

// Tokenizer converts between text and token IDs.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// tiktokenizer adapts a tiktoken encoding to Tokenizer.
type tiktokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t tiktokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// NewTiktoken returns the tiktoken encoding for model, falling back to cl100k_base.
func NewTiktoken(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load %s encoding: %w", fallbackEncoding, err)
		}
	}
	return tiktokenizer{enc: enc}, nil
}

// Token packs tokens into windows of size tokens, stepping by size-overlap.
type Token struct {
	tokenizer Tokenizer
	size      int
	overlap   int
}

// NewToken creates a token chunker. Non-positive sizes take the defaults.
func NewToken(tokenizer Tokenizer, size, overlap int) *Token {
	if size <= 0 {
		size = domain.DefaultTokenChunkSize
	}
	if overlap < 0 {
		overlap = domain.DefaultTokenChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Token{tokenizer: tokenizer, size: size, overlap: overlap}
}

// Name returns the strategy name.
func (t *Token) Name() string {
	return string(domain.ChunkingToken)
}

// Chunk splits text into token windows.
func (t *Token) Chunk(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	tokens := t.tokenizer.Encode(text)
	if len(tokens) <= t.size {
		return []string{text}
	}

	var chunks []string
	step := t.size - t.overlap
	for start := 0; start < len(tokens); start += step {
		end := min(start+t.size, len(tokens))
		if c := strings.TrimSpace(t.tokenizer.Decode(tokens[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
