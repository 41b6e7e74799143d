package models

import (
	"encoding/json"
	"testing"
)

func TestDocument_JSONSerialization(t *testing.T) {
	// Arrange
	doc := Document{
		ID:      7,
		Title:   "Development Tools",
		URL:     "https://notes.example.com/2025-01/dev-tools.md",
		Content: "# Development Tools\n\nEditors, shells, and friends.",
	}

	// Act - serialize to JSON
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal Document: %v", err)
	}

	// Act - deserialize from JSON
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal Document: %v", err)
	}

	// Assert
	if decoded.ID != doc.ID {
		t.Errorf("ID mismatch: got %d, want %d", decoded.ID, doc.ID)
	}
	if decoded.Title != doc.Title {
		t.Errorf("Title mismatch: got %q, want %q", decoded.Title, doc.Title)
	}
	if decoded.URL != doc.URL {
		t.Errorf("URL mismatch: got %q, want %q", decoded.URL, doc.URL)
	}
	if decoded.Content != doc.Content {
		t.Errorf("Content mismatch: got %q, want %q", decoded.Content, doc.Content)
	}
}

func TestUserRequest_OmitsEmptyOptionalFields(t *testing.T) {
	req := UserRequest{Question: "What is a dataframe?"}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal UserRequest: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal into map: %v", err)
	}

	if _, ok := raw["image"]; ok {
		t.Error("empty image should be omitted from JSON")
	}
	if _, ok := raw["link"]; ok {
		t.Error("empty link should be omitted from JSON")
	}
	if raw["question"] != "What is a dataframe?" {
		t.Errorf("question = %v, want %q", raw["question"], "What is a dataframe?")
	}
}

func TestAnswerResult_LinksSerializeInOrder(t *testing.T) {
	result := AnswerResult{
		Answer: "Use pandas.",
		Links: []Link{
			{URL: "https://a.example.com", Text: "first"},
			{URL: "https://b.example.com", Text: "second"},
		},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal AnswerResult: %v", err)
	}

	var decoded AnswerResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal AnswerResult: %v", err)
	}

	if len(decoded.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(decoded.Links))
	}
	if decoded.Links[0].Text != "first" || decoded.Links[1].Text != "second" {
		t.Errorf("links out of order: %+v", decoded.Links)
	}
}
