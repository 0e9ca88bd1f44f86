// Package chunker splits extracted document text into overlapping chunks.
//
// Three strategies are available:
//   - paragraph: packs paragraphs, then sentences, into character-bounded chunks
//   - token: packs tokenizer tokens into fixed windows
//   - markdown: splits on ATX headers before packing
//
// Strategies are built from domain.ChunkingSettings through a Registry.
package chunker
