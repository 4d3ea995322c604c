package chunker

import (
	"strings"
	"unicode/utf8"

	"virtualta/internal/domain"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// and finally single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits text into chunks of at most chunkSize characters,
// cutting at the coarsest separator that yields small enough pieces and
// carrying up to overlap characters of trailing context into the next chunk.
// Lengths are counted in runes.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewRecursiveChunker(chunkSize, overlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &RecursiveChunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

func (c *RecursiveChunker) ChunkSize() int { return c.chunkSize }

func (c *RecursiveChunker) Overlap() int { return c.overlap }

// Split cuts doc into chunks that each carry a copy of doc.Metadata.
// Content that already fits in one chunk is returned verbatim; longer
// content yields whitespace-trimmed chunks.
func (c *RecursiveChunker) Split(doc domain.Document) []domain.Chunk {
	if doc.Content == "" {
		return nil
	}

	if runeLen(doc.Content) <= c.chunkSize {
		return []domain.Chunk{{Text: doc.Content, Metadata: doc.Metadata}}
	}

	texts := c.splitText(doc.Content, c.separators)
	chunks := make([]domain.Chunk, 0, len(texts))
	for _, text := range texts {
		chunks = append(chunks, domain.Chunk{Text: text, Metadata: doc.Metadata})
	}
	return chunks
}

func (c *RecursiveChunker) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, s := range separators {
		if s == "" {
			separator = ""
			break
		}
		if strings.Contains(text, s) {
			separator = s
			finer = separators[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, piece := range splitKeep(text, separator) {
		if runeLen(piece) <= c.chunkSize {
			fitting = append(fitting, piece)
			continue
		}

		if len(fitting) > 0 {
			out = append(out, c.merge(fitting)...)
			fitting = nil
		}
		if len(finer) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, c.splitText(piece, finer)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, c.merge(fitting)...)
	}
	return out
}

// merge packs pieces into chunks. When a chunk is emitted, pieces are
// dropped from its front until at most overlap characters remain; those
// start the next chunk.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)

		if total+n > c.chunkSize && len(current) > 0 {
			if text := strings.TrimSpace(strings.Join(current, "")); text != "" {
				chunks = append(chunks, text)
			}
			for len(current) > 0 && (total > c.overlap || total+n > c.chunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += n
	}

	if text := strings.TrimSpace(strings.Join(current, "")); text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// splitKeep splits text after each separator so that no characters are lost.
// An empty separator splits into single runes.
func splitKeep(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.SplitAfter(text, separator)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
