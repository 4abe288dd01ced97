// Package chunker cleans extracted manual text and splits it into
// overlapping passages for the vector index.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSeparators are tried coarsest first: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text recursively on a list of separators, keeping each
// chunk at or under ChunkSize characters with ChunkOverlap characters
// carried over between neighbours.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter creates a splitter using DefaultSeparators
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}, nil
}

// Split returns the ordered chunks of text. Blank input yields no chunks.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, separator)...)
			good = nil
		}
		if len(finer) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, finer)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, separator)...)
	}
	return chunks
}

// merge packs small pieces into chunks, rewinding to keep up to
// ChunkOverlap characters of the previous chunk at the start of the next.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var (
		chunks  []string
		current []string
		total   int
	)
	joinCost := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinCost() > s.ChunkSize && len(current) > 0 {
			chunk := strings.TrimSpace(strings.Join(current, separator))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.ChunkOverlap || (total+n+joinCost() > s.ChunkSize && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
			// Whole pieces longer than the overlap leave nothing behind,
			// so carry the tail of the flushed chunk instead.
			if len(current) == 0 && chunk != "" {
				if tail := overlapTail(chunk, min(s.ChunkOverlap, s.ChunkSize-n-sepLen)); tail != "" {
					current = []string{tail}
					total = runeLen(tail)
				}
			}
		}
		current = append(current, piece)
		if len(current) > 1 {
			total += sepLen
		}
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// overlapTail returns at most limit trailing runes of chunk, starting at a
// word boundary when one exists inside the window.
func overlapTail(chunk string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= limit {
		return chunk
	}
	cut := len(runes) - limit
	start := cut
	if !unicode.IsSpace(runes[start-1]) {
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	tail := strings.TrimLeftFunc(string(runes[start:]), unicode.IsSpace)
	if tail == "" {
		tail = string(runes[cut:])
	}
	return tail
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, p := range strings.Split(text, separator) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
