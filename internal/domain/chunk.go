package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Format is the ingestion format hint selecting a chunking profile.
type Format string

const (
	// FormatPDF covers long-form paginated documents (PDF, DOCX).
	FormatPDF Format = "pdf"
	// FormatText covers plain text and markdown.
	FormatText Format = "text"
)

// Document is a unit of ingestion. It is not retained after chunking;
// only the chunks derived from it persist.
type Document struct {
	ID         string
	SourceName string
	RawText    string
	Format     Format
}

// Chunk is a bounded contiguous slice of a document's text, the unit of
// embedding and retrieval. Immutable once created.
type Chunk struct {
	ID            string
	DocumentID    string
	Text          string
	SequenceIndex int
	CharCount     int
	WordCount     int
	Page          int // 0 when the source carries no page information
}

// NewChunk builds a chunk with derived counts and a stable content-deterministic
// ID, so re-ingesting identical text produces the same chunk identity.
func NewChunk(documentID, text string, seq, page int) Chunk {
	return Chunk{
		ID:            ChunkID(documentID, seq, text),
		DocumentID:    documentID,
		Text:          text,
		SequenceIndex: seq,
		CharCount:     len(text),
		WordCount:     len(strings.Fields(text)),
		Page:          page,
	}
}

// ChunkID derives a stable chunk identifier from document, position, and content.
func ChunkID(documentID string, seq int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", documentID, seq, text)))
	return hex.EncodeToString(h[:])[:16]
}
