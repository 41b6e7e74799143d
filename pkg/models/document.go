package models

// Document is a single article in the ingested corpus. Documents are
// immutable once written: the corpus builder assigns ids strictly in
// ingestion order and guarantees URLs are unique across the set.
type Document struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// RetrievedMatch is one nearest-neighbor hit from the vector index.
// Distance is non-negative; lower means more similar.
type RetrievedMatch struct {
	ID       int     `json:"id"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
	URL      string  `json:"url"`
}

// UserRequest is the body of a question-answering API call.
// Question is required. Image, when present, is a base64-encoded image.
// Link is an optional URL supplied as extra retrieval context.
type UserRequest struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Link is a citation pointing back into the corpus.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// AnswerResult is the API response: the generated answer plus at most
// three citation links in rank order.
type AnswerResult struct {
	Answer string `json:"answer"`
	Links  []Link `json:"links"`
}
