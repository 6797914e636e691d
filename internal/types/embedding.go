package types

import "time"

// IssueEmbedding is the vector representation of one issue, indexed by
// the active similarity search with cosine metric.
type IssueEmbedding struct {
	IssueID      string    `json:"issue_id"`
	IssueKey     string    `json:"issue_key"`
	Embedding    []float32 `json:"embedding"`
	EmbeddedText string    `json:"embedded_text"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Dimensions   int       `json:"dimensions"`
	CreatedAt    time.Time `json:"created_at"`
}

// SemanticSearchResult is one row returned by EmbeddingsRepository's
// semantic search, joined with Issue display fields.
type SemanticSearchResult struct {
	IssueKey    string  `json:"issue_key"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	ProjectID   string  `json:"project_id"`
	Distance    float64 `json:"distance"`
}
