package index

import (
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// storedEntry is the persisted payload: the entry plus its insertion
// position, which restores the documented search tie-break after a restart.
type storedEntry struct {
	Entry    domain.IndexEntry `json:"entry"`
	Position int               `json:"position"`
}

// backupFile is the whole-collection snapshot layout written by Backup.
type backupFile struct {
	Dimensions int                 `json:"dimensions"`
	Entries    []domain.IndexEntry `json:"entries"`
}

// matchesSource reports whether any token occurs in the entry's source or
// document name (case-insensitive substring, tokens already lowercased).
func matchesSource(m *domain.Metadata, tokens []string) bool {
	source := strings.ToLower(m.Source)
	document := strings.ToLower(m.Document)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(source, tok) || strings.Contains(document, tok) {
			return true
		}
	}
	return false
}
