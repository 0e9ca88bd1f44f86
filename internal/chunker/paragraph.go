package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Paragraph implements the interface.
var _ driven.Chunker = (*Paragraph)(nil)

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

// Paragraph packs paragraphs into chunks of at most maxSize runes.
// Oversized paragraphs are split into sentences, oversized sentences into
// fixed windows.
type Paragraph struct {
	maxSize int
	overlap int
}

// Option configures the paragraph chunker.
type Option func(*Paragraph)

// WithMaxSize sets the maximum chunk length in runes.
func WithMaxSize(size int) Option {
	return func(p *Paragraph) {
		if size > 0 {
			p.maxSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Paragraph) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// NewParagraph creates a paragraph chunker with the given options.
func NewParagraph(opts ...Option) *Paragraph {
	p := &Paragraph{
		maxSize: domain.DefaultChunkSize,
		overlap: domain.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room for new content.
	if p.overlap >= p.maxSize {
		p.overlap = p.maxSize / 4
	}
	return p
}

// Name returns the strategy name.
func (p *Paragraph) Name() string {
	return string(domain.ChunkingParagraph)
}

// piece is an indivisible unit of packing. sep is written before text
// whenever the piece is not the first in its chunk. overlapped marks a
// window that already starts with the tail of the previous window.
type piece struct {
	text       string
	sep        string
	overlapped bool
}

// Chunk splits text into ordered chunks.
func (p *Paragraph) Chunk(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	if runeLen(text) <= p.maxSize {
		return []string{text}
	}

	var (
		chunks []string
		cur    []piece
	)
	for _, next := range p.pieces(text) {
		if len(cur) > 0 && joinedLen(cur)+runeLen(next.sep)+runeLen(next.text) > p.maxSize {
			chunks = append(chunks, join(cur))
			if next.overlapped {
				cur = nil
			} else {
				cur = p.seed(cur, next)
			}
		}
		cur = append(cur, next)
	}
	if len(cur) > 0 {
		chunks = append(chunks, join(cur))
	}
	return chunks
}

// pieces breaks text into paragraphs, sentences and windows that each fit
// within maxSize.
func (p *Paragraph) pieces(text string) []piece {
	var out []piece
	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		var parts []piece
		if runeLen(para) <= p.maxSize {
			parts = []piece{{text: para}}
		} else {
			for _, sentence := range splitSentences(para) {
				if runeLen(sentence) <= p.maxSize {
					parts = append(parts, piece{text: sentence})
					continue
				}
				for j, w := range p.windows(sentence) {
					parts = append(parts, piece{text: w, overlapped: j > 0})
				}
			}
		}

		for i := range parts {
			parts[i].sep = sentenceSep
			if i == 0 {
				parts[i].sep = paragraphSep
			}
			out = append(out, parts[i])
		}
	}
	return out
}

// windows cuts s into fixed rune windows stepping by maxSize-overlap,
// so consecutive windows share overlap runes.
func (p *Paragraph) windows(s string) []string {
	runes := []rune(s)
	step := p.maxSize - p.overlap
	if step <= 0 {
		step = p.maxSize
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+p.maxSize, len(runes))
		if w := strings.TrimSpace(string(runes[start:end])); w != "" {
			out = append(out, w)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// seed returns the overlap carried from a closed chunk into the next one.
// Whole trailing pieces are preferred. The result plus next never exceeds maxSize.
func (p *Paragraph) seed(closed []piece, next piece) []piece {
	limit := min(p.overlap, p.maxSize-runeLen(next.sep)-runeLen(next.text))
	if limit <= 0 {
		return nil
	}

	k := 0
	for k < len(closed) && joinedLen(closed[len(closed)-k-1:]) <= limit {
		k++
	}
	if k > 0 {
		return append([]piece(nil), closed[len(closed)-k:]...)
	}

	last := []rune(closed[len(closed)-1].text)
	tail := strings.TrimLeftFunc(string(last[len(last)-limit:]), unicode.IsSpace)
	if tail == "" {
		return nil
	}
	return []piece{{text: tail, sep: paragraphSep}}
}

// splitSentences splits on '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func join(pieces []piece) string {
	var b strings.Builder
	for i, pc := range pieces {
		if i > 0 {
			b.WriteString(pc.sep)
		}
		b.WriteString(pc.text)
	}
	return b.String()
}

func joinedLen(pieces []piece) int {
	n := 0
	for i, pc := range pieces {
		if i > 0 {
			n += runeLen(pc.sep)
		}
		n += runeLen(pc.text)
	}
	return n
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
