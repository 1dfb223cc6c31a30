package domain

// SearchType tags which retrieval pass produced a result's score.
type SearchType string

const (
	// SearchSemantic marks a vector-similarity hit.
	SearchSemantic SearchType = "semantic"
	// SearchMetadata marks a filename/source-match hit.
	SearchMetadata SearchType = "metadata"
	// SearchExpansion marks a lexical term-expansion hit.
	SearchExpansion SearchType = "expansion"
)

// SearchResult is an ephemeral per-query hit. Never persisted.
type SearchResult struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Metadata   Metadata   `json:"metadata"`
	Similarity float64    `json:"similarity_score"`
	Distance   float64    `json:"distance"`
	SearchType SearchType `json:"search_type"`
	Rank       int        `json:"rank"`
}

// RetrievalContext is the assembled answer context for one query: the ranked
// results that fit the character budget, the rendered context string, and the
// distinct sources cited, in rank order.
type RetrievalContext struct {
	Results  []SearchResult `json:"results"`
	Context  string         `json:"context"`
	Sources  []string       `json:"sources"`
	Degraded bool           `json:"degraded"`
	TopK     int            `json:"top_k"`
}
