// Package chunker splits raw document text into overlapping, word-bounded
// chunks suitable for embedding and retrieval.
//
// Documents are normalized, split into paragraphs on blank lines, and
// paragraphs are greedily accumulated into chunks of at most
// MaxWordsPerChunk words. Consecutive chunks share the last OverlapWords
// words of the previous chunk so that retrieval keeps cross-chunk context.
// The overlap is intentional redundancy: word counts are approximate upper
// bounds, not exact ones.
package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

// Default chunking parameters. Roughly 150 words per chunk keeps each chunk
// well under typical embedding model input limits while staying large enough
// to carry a complete idea.
const (
	DefaultMaxWordsPerChunk = 150
	DefaultOverlapWords     = 25
)

// Config controls chunk sizing.
type Config struct {
	// MaxWordsPerChunk is the greedy accumulation limit per chunk.
	MaxWordsPerChunk int

	// OverlapWords is the number of trailing words of an emitted chunk
	// repeated verbatim at the start of the next chunk.
	OverlapWords int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxWordsPerChunk: DefaultMaxWordsPerChunk,
		OverlapWords:     DefaultOverlapWords,
	}
}

// Chunk is one emitted slice of a source document, before embedding.
// The first chunk of a document keeps the original title; later chunks are
// suffixed "<title> - Parte <n>" with n starting at 1.
type Chunk struct {
	Title    string
	Content  string
	Category string
}

// TextStats summarizes a normalized text.
type TextStats struct {
	Words      int
	Chars      int
	Paragraphs int
}

// Chunker splits text according to a Config.
type Chunker struct {
	cfg Config
}

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` +`)
)

// New creates a Chunker. Non-positive config values fall back to defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxWordsPerChunk <= 0 {
		cfg.MaxWordsPerChunk = DefaultMaxWordsPerChunk
	}
	if cfg.OverlapWords <= 0 {
		cfg.OverlapWords = DefaultOverlapWords
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits text into ordered chunks. The category is inherited by every
// chunk unchanged. Input with no paragraphs yields an empty slice; no
// emitted chunk is ever empty.
func (c *Chunker) Chunk(text, title, category string) []Chunk {
	paragraphs := splitParagraphs(normalize(text))
	if len(paragraphs) == 0 {
		return nil
	}
	return c.group(paragraphs, title, category)
}

// Stats returns word, character and paragraph counts of the normalized text.
func (c *Chunker) Stats(text string) TextStats {
	clean := normalize(text)
	return TextStats{
		Words:      len(strings.Fields(clean)),
		Chars:      len([]rune(clean)),
		Paragraphs: len(splitParagraphs(clean)),
	}
}

// normalize collapses runs of 3+ newlines to a paragraph break, collapses
// runs of spaces, and trims surrounding whitespace.
func normalize(text string) string {
	clean := multiNewline.ReplaceAllString(text, "\n\n")
	clean = multiSpace.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// splitParagraphs splits on blank lines, dropping empty paragraphs.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// group greedily accumulates paragraphs into chunks, seeding each new chunk
// with the overlap tail of the previous one.
func (c *Chunker) group(paragraphs []string, title, category string) []Chunk {
	var (
		chunks    []Chunk
		current   strings.Builder
		wordCount int
		partIndex = 1
	)

	emit := func() {
		content := strings.TrimSpace(current.String())
		if content == "" {
			return
		}
		chunkTitle := title
		if len(chunks) > 0 {
			chunkTitle = title + " - Parte " + strconv.Itoa(partIndex)
		}
		chunks = append(chunks, Chunk{Title: chunkTitle, Content: content, Category: category})
		partIndex++
	}

	for _, paragraph := range paragraphs {
		paragraphWords := len(strings.Fields(paragraph))

		if wordCount+paragraphWords > c.cfg.MaxWordsPerChunk && current.Len() > 0 {
			emit()

			overlap := c.overlapTail(current.String())
			current.Reset()
			current.WriteString(overlap)
			wordCount = len(strings.Fields(overlap))
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
		wordCount += paragraphWords
	}

	// Trailing partial chunk is always emitted, even if short.
	emit()

	return chunks
}

// overlapTail returns the last OverlapWords words of text, or the whole text
// when it has fewer words than the overlap size.
func (c *Chunker) overlapTail(text string) string {
	words := strings.Fields(text)
	if len(words) <= c.cfg.OverlapWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-c.cfg.OverlapWords:], " ")
}
