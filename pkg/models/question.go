package models

// Question is the read-only view of an exam question from the external catalog
type Question struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"` // enriched explanation, may be empty
}
