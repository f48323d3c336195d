package chunker

import (
	"fmt"
	"strings"
)

// Chunk is one slice of the input, with its [Start, End) byte span.
type Chunk struct {
	Text  string
	Start int
	End   int
	Index int
}

// separators in descending boundary priority: paragraph break, line break,
// sentence end, word break. A hard character cut is the last resort.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits text into overlapping chunks of at most Size bytes. Every
// chunk after the first starts Overlap bytes before the end of the previous
// chunk, so consecutive chunks share content.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence covering text with no gaps.
// Empty input yields no chunks; input no longer than the chunk size yields
// exactly one. The output is deterministic for fixed parameters.
func (c *Chunker) Split(text string) []Chunk {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= c.size {
		return []Chunk{{Text: text, Start: 0, End: len(text)}}
	}

	var chunks []Chunk
	start := 0
	for i := 0; ; i++ {
		end := start + c.size
		if end >= len(text) {
			chunks = append(chunks, Chunk{Text: text[start:], Start: start, End: len(text), Index: i})
			break
		}
		end = c.cut(text, start, end)
		chunks = append(chunks, Chunk{Text: text[start:end], Start: start, End: end, Index: i})
		start = end - c.overlap
	}
	return chunks
}

// cut picks the best split point in (start+overlap, hard]. Boundaries that
// would not advance past the shared overlap window are unusable, so each
// separator is only considered at its last occurrence; when none fits, the
// hard limit wins.
func (c *Chunker) cut(text string, start, hard int) int {
	min := start + c.overlap + 1
	window := text[start:hard]
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			if p := start + idx + len(sep); p >= min {
				return p
			}
		}
	}
	return hard
}
