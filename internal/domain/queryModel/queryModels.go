package queryModel

import "time"

type Citation struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	SourceURL  string  `json:"source_url,omitempty"`
	Category   string  `json:"category,omitempty"`
	Page       int     `json:"page"`
	Score      float32 `json:"score"`
}

type QueryResult struct {
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Citations []Citation    `json:"citations"`
	Latency   time.Duration `json:"latency"`
	NoResults bool          `json:"no_results"`
	Cached    bool          `json:"cached"`
}
