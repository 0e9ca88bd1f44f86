package chunker

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Markdown implements the interface.
var _ driven.Chunker = (*Markdown)(nil)

// DefaultMinSectionSize is the length below which text outside a header section is dropped.
const DefaultMinSectionSize = 100

var atxHeader = regexp.MustCompile(`(?m)^#{1,6}[ \t]+[^\n]+`)

// Markdown splits text into header sections. Sections longer than maxSize
// are re-chunked with the header repeated on every sub-chunk.
type Markdown struct {
	maxSize int
	minSize int
}

// NewMarkdown creates a markdown header chunker.
func NewMarkdown(maxSize int) *Markdown {
	if maxSize <= 0 {
		maxSize = domain.DefaultChunkSize
	}
	return &Markdown{maxSize: maxSize, minSize: DefaultMinSectionSize}
}

// Name returns the strategy name.
func (m *Markdown) Name() string {
	return string(domain.ChunkingMarkdown)
}

// Chunk splits text on ATX headers.
func (m *Markdown) Chunk(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	headers := atxHeader.FindAllStringIndex(text, -1)
	if len(headers) == 0 {
		return NewParagraph(WithMaxSize(m.maxSize), WithOverlap(m.maxSize/5)).Chunk(text)
	}

	var chunks []string
	if pre := strings.TrimSpace(text[:headers[0][0]]); runeLen(pre) > m.minSize {
		chunks = append(chunks, m.fit(pre)...)
	}

	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		section := strings.TrimSpace(text[h[0]:end])
		if runeLen(section) <= m.maxSize {
			chunks = append(chunks, section)
			continue
		}

		header := strings.TrimSpace(text[h[0]:h[1]])
		chunks = append(chunks, m.subChunks(header, text[h[1]:end])...)
	}
	return chunks
}

// subChunks re-chunks an oversized section body, prefixing each piece with header.
func (m *Markdown) subChunks(header, body string) []string {
	size := m.maxSize - runeLen(header) - len(paragraphSep)
	if size <= 0 {
		// Header alone fills the budget; emit the body unprefixed.
		return m.fit(body)
	}

	var out []string
	for _, c := range NewParagraph(WithMaxSize(size), WithOverlap(size/5)).Chunk(body) {
		out = append(out, header+paragraphSep+c)
	}
	return out
}

// fit returns s as one chunk, or several if it exceeds maxSize.
func (m *Markdown) fit(s string) []string {
	return NewParagraph(WithMaxSize(m.maxSize), WithOverlap(m.maxSize/5)).Chunk(s)
}
