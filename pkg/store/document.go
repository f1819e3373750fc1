package store

// Document is one retrieved knowledge chunk used as generation context
type Document struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SourceText returns the original passage stored alongside the chunk, if any.
func (d Document) SourceText() string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata["source_text"].(string); ok {
		return s
	}
	return ""
}
