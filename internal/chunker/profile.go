package chunker

import "github.com/kailas-cloud/ragdex/internal/domain"

// Profile holds the chunk-size and overlap settings for one document format.
type Profile struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultMinChunkSize is the noise floor below which chunks are discarded.
const DefaultMinChunkSize = 50

// DefaultProfiles returns the built-in per-format chunking profiles.
// Long-form paginated documents get larger windows than plain text.
func DefaultProfiles() map[domain.Format]Profile {
	return map[domain.Format]Profile{
		domain.FormatPDF:  {ChunkSize: 1300, ChunkOverlap: 260},
		domain.FormatText: {ChunkSize: 1100, ChunkOverlap: 220},
	}
}
