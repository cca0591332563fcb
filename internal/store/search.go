package store

// SearchResult is one page matching a search query.
type SearchResult struct {
	Page    string `json:"page"`
	Snippet string `json:"snippet"`
}
