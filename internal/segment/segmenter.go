// Package segment splits extracted document text into overlapping chunks
// suitable for embedding and retrieval.
package segment

import "strings"

// Segmenter packs newline-separated lines into chunks bounded by a character
// budget, carrying trailing overlap into the next chunk so a semantic unit
// that crosses a chunk boundary stays intact in at least one chunk. Output is
// fully determined by the input text and the two parameters.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// New creates a segmenter. Non-positive sizes fall back to sane bounds; the
// overlap is clamped below the chunk size so segmentation always advances.
func New(chunkSize, overlap int) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Segmenter{chunkSize: chunkSize, overlap: overlap}
}

// Segment splits rawText into chunk strings. Empty or whitespace-only input
// yields nil; no produced chunk is empty and none exceeds the chunk size.
func (s *Segmenter) Segment(rawText string) []string {
	var pieces [][]rune
	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		r := []rune(trimmed)
		// A single line above the budget is hard-wrapped with the same
		// overlap between windows.
		for len(r) > s.chunkSize {
			pieces = append(pieces, r[:s.chunkSize])
			r = r[s.chunkSize-s.overlap:]
		}
		pieces = append(pieces, r)
	}
	if len(pieces) == 0 {
		return nil
	}

	var chunks []string
	cur := append([]rune(nil), pieces[0]...)
	for _, piece := range pieces[1:] {
		if len(cur)+1+len(piece) > s.chunkSize {
			chunks = append(chunks, string(cur))
			tail := cur
			if len(tail) > s.overlap {
				tail = tail[len(tail)-s.overlap:]
			}
			// Seed the next chunk with the previous tail unless that alone
			// would blow the budget for this piece.
			if len(tail)+1+len(piece) <= s.chunkSize {
				cur = append(append([]rune(nil), tail...), '\n')
				cur = append(cur, piece...)
			} else {
				cur = append([]rune(nil), piece...)
			}
			continue
		}
		cur = append(cur, '\n')
		cur = append(cur, piece...)
	}
	chunks = append(chunks, string(cur))
	return chunks
}

// ChunkSize reports the configured character budget per chunk.
func (s *Segmenter) ChunkSize() int { return s.chunkSize }

// Overlap reports the configured overlap carried between chunks.
func (s *Segmenter) Overlap() int { return s.overlap }
