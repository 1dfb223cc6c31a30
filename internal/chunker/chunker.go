// Package chunker splits normalized document text into overlapping chunks
// using a cascade of separators, from section breaks down to a character
// fallback.
package chunker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// separators is the split cascade, coarsest first. The empty separator is
// the character-level last resort for atomic units larger than the chunk size.
var separators = []string{"\n\n\n", "\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Chunker splits text into overlapping windows according to a per-format profile.
type Chunker struct {
	profiles map[domain.Format]Profile
	fallback Profile
	minSize  int
	logger   *zap.Logger
}

// New creates a chunker with the given profiles. minSize is the noise floor:
// chunks shorter than it (page headers, stray lines) are dropped.
func New(profiles map[domain.Format]Profile, minSize int, logger *zap.Logger) *Chunker {
	fallback := DefaultProfiles()[domain.FormatText]
	if p, ok := profiles[domain.FormatText]; ok {
		fallback = p
	}
	return &Chunker{
		profiles: profiles,
		fallback: fallback,
		minSize:  minSize,
		logger:   logger,
	}
}

// Split chunks a document's text. An empty document yields zero chunks,
// which is a valid outcome, not a failure. Split never returns an error for
// arbitrary text.
func (c *Chunker) Split(doc domain.Document) []domain.Chunk {
	profile := c.profileFor(doc.Format)

	text := normalizeWhitespace(doc.RawText)
	if text == "" {
		c.logger.Info("Document produced no chunks",
			zap.String("source", doc.SourceName),
			zap.String("document_id", doc.ID),
		)
		return nil
	}

	pieces := splitRecursive(text, profile.ChunkSize, 0)
	windows := mergeWindows(pieces, profile.ChunkSize, profile.ChunkOverlap)

	chunks := make([]domain.Chunk, 0, len(windows))
	dropped := 0
	for _, w := range windows {
		w = strings.TrimSpace(w)
		if len(w) < c.minSize {
			dropped++
			continue
		}
		chunks = append(chunks, domain.NewChunk(doc.ID, w, len(chunks), 0))
	}

	c.logger.Debug("Document chunked",
		zap.String("source", doc.SourceName),
		zap.Int("chunks", len(chunks)),
		zap.Int("dropped_noise", dropped),
		zap.Int("chunk_size", profile.ChunkSize),
	)
	return chunks
}

func (c *Chunker) profileFor(f domain.Format) Profile {
	if p, ok := c.profiles[f]; ok {
		return p
	}
	return c.fallback
}

// splitRecursive splits text on the first separator in the cascade whose
// pieces all fit chunkSize; oversized pieces recurse into the next separator.
// At the end of the cascade the text is hard-split at the character level —
// a deliberate lossy fallback for atomic units, not an error.
func splitRecursive(text string, chunkSize, sepIdx int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return hardSplit(text, chunkSize)
	}

	sep := separators[sepIdx]
	if sep == "" {
		return hardSplit(text, chunkSize)
	}

	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		// Separator absent; try the next finer one.
		return splitRecursive(text, chunkSize, sepIdx+1)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) > chunkSize {
			out = append(out, splitRecursive(p, chunkSize, sepIdx+1)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// hardSplit cuts text into chunkSize slices on byte boundaries aligned to
// rune starts, so a multi-byte rune is never split in half.
func hardSplit(text string, chunkSize int) []string {
	var out []string
	for len(text) > chunkSize {
		cut := chunkSize
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = chunkSize
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// mergeWindows joins pieces into windows of up to chunkSize characters,
// emitting a window once the running size would exceed the limit and
// re-seeding the next window with the trailing overlap of the previous one.
func mergeWindows(pieces []string, chunkSize, overlap int) []string {
	var windows []string
	var cur strings.Builder

	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > chunkSize {
			w := cur.String()
			windows = append(windows, w)
			cur.Reset()
			// Re-seed with the trailing overlap for continuity, unless the
			// seed plus the next piece would itself break the size bound.
			if seed := overlapTail(w, overlap); len(seed)+len(p) <= chunkSize {
				cur.WriteString(seed)
			}
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		windows = append(windows, cur.String())
	}
	return windows
}

// overlapTail returns the trailing overlap characters of a window, aligned
// to a rune start.
func overlapTail(s string, overlap int) string {
	if overlap <= 0 || len(s) <= overlap {
		return ""
	}
	cut := len(s) - overlap
	for cut < len(s) && !isRuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}

// normalizeWhitespace collapses runs of carriage returns and trims outer
// whitespace while preserving paragraph structure and citation markers.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
