// Package ingest provides document chunking and the ingestion flow.
package ingest

import (
	"regexp"
	"strings"
)

// Paragraph boundary patterns, all evaluated together against the text:
// a blank-line separator (consumed), a line starting a numbered section, and
// a line starting with a capitalized word (new-sentence heuristic). The last
// two are split points only; the matched text stays with the next paragraph.
var (
	newlineRunRe = regexp.MustCompile(`\n+`)
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	numberedRe   = regexp.MustCompile(`\n[0-9]+\.`)
	sentenceRe   = regexp.MustCompile(`\n[A-Z][a-z]`)
)

// Chunker splits extracted document text into bounded, overlapping passages.
type Chunker struct {
	chunkSize         int
	overlapParagraphs int
}

// NewChunker creates a chunker. chunkSize bounds the running character length
// of a chunk; overlapParagraphs is how many trailing paragraphs of a closed
// chunk seed the next one (0 disables overlap).
func NewChunker(chunkSize, overlapParagraphs int) *Chunker {
	return &Chunker{
		chunkSize:         chunkSize,
		overlapParagraphs: overlapParagraphs,
	}
}

// Split chunks text into passages. Paragraph-like units are accumulated
// greedily while the running length stays within the chunk size; closing a
// chunk seeds the next with the last overlapParagraphs units for context
// continuity. A single paragraph longer than the chunk size is emitted as an
// oversized chunk on its own rather than split mid-paragraph. Output is a
// pure function of the input.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(newlineRunRe.ReplaceAllString(text, "\n"))
	if text == "" {
		return nil
	}

	paragraphs := make([]string, 0)
	for _, part := range splitParagraphs(text) {
		part = strings.TrimSpace(part)
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}

	chunks := make([]string, 0)
	var current []string
	currentLen := 0
	for _, para := range paragraphs {
		if len(current) > 0 && currentLen+len(para) > c.chunkSize {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			if c.overlapParagraphs > 0 {
				keep := c.overlapParagraphs
				if keep > len(current) {
					keep = len(current)
				}
				current = append([]string(nil), current[len(current)-keep:]...)
			} else {
				current = current[:0]
			}
			currentLen = 0
			for _, p := range current {
				currentLen += len(p)
			}
		}
		current = append(current, para)
		currentLen += len(para)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}

type boundary struct {
	start, end int
	zeroWidth  bool
}

// splitParagraphs cuts text at the earliest of the three boundary patterns,
// repeatedly. Blank-line boundaries consume the separator; the other two are
// zero-width, so the next piece keeps its leading newline (trimmed later).
func splitParagraphs(text string) []string {
	var parts []string
	pos := 0    // start of the current piece
	search := 0 // where boundary matching resumes
	for {
		b, ok := nextBoundary(text, search)
		if !ok {
			parts = append(parts, text[pos:])
			return parts
		}
		parts = append(parts, text[pos:b.start])
		if b.zeroWidth {
			pos = b.start
			search = b.start + 1 // step past the newline so the boundary is not re-matched
		} else {
			pos = b.end
			search = b.end
		}
	}
}

func nextBoundary(text string, from int) (boundary, bool) {
	if from >= len(text) {
		return boundary{}, false
	}
	best := boundary{}
	found := false
	// Order matters for ties: the consuming blank-line pattern wins over the
	// zero-width ones at the same position.
	for _, cand := range []struct {
		re        *regexp.Regexp
		zeroWidth bool
	}{
		{blankLineRe, false},
		{numberedRe, true},
		{sentenceRe, true},
	} {
		loc := cand.re.FindStringIndex(text[from:])
		if loc == nil {
			continue
		}
		start, end := from+loc[0], from+loc[1]
		if !found || start < best.start {
			best = boundary{start: start, end: end, zeroWidth: cand.zeroWidth}
			found = true
		}
	}
	return best, found
}
