package search

// FeedbackRecord is the data we index for a feedback item.
type FeedbackRecord struct {
	ID            string `json:"id"`
	DocumentID    string `json:"documentId"`
	ChangeFrom    string `json:"changeFrom"`
	ChangeTo      string `json:"changeTo"`
	CommentType   string `json:"commentType"`
	Component     string `json:"component"`
	Comment       string `json:"comment"`
	Justification string `json:"justification"`
	Resolved      bool   `json:"resolved"`
}

// Query describes a feedback search request.
type Query struct {
	Text        string
	DocumentID  string
	CommentType string // empty = all types
	Component   string
	Limit       int
	Offset      int
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	DocumentID  string `json:"documentId"`
	CommentType string `json:"commentType"`
	Component   string `json:"component"`
	Snippet     string `json:"snippet"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}
