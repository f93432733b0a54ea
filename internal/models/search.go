package models

// SearchResult is one hybrid search hit. Score is the reciprocal rank fusion
// score; VecRank and FTSRank are the 1-based per-engine ranks and are zero
// when the corresponding engine did not match the chunk.
type SearchResult struct {
	StoredDocument
	Score   float64 `json:"score"`
	VecRank int     `json:"vecRank,omitempty"`
	FTSRank int     `json:"ftsRank,omitempty"`
}

// StoreSearchResult is a retriever result: one representative excerpt per
// URL with its hierarchical context merged in.
type StoreSearchResult struct {
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
