package retrieval

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/pkg/models"
)

// fakeEmbedder records the inputs it was asked to embed.
type fakeEmbedder struct {
	inputs []embeddings.Input
}

func (f *fakeEmbedder) Embed(ctx context.Context, input embeddings.Input) ([]float32, error) {
	f.inputs = append(f.inputs, input)
	return []float32{float32(len(f.inputs))}, nil
}

// fakeSearcher replays canned match lists, one per query.
type fakeSearcher struct {
	responses [][]models.RetrievedMatch
	calls     int
}

func (f *fakeSearcher) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedMatch, error) {
	f.calls++
	if len(f.responses) == 0 {
		return nil, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func match(id int, distance float64) models.RetrievedMatch {
	return models.RetrievedMatch{
		ID:       id,
		Text:     strings.Repeat("t", id), // distinct, deterministic text
		Distance: distance,
		URL:      "https://corpus.example.com/" + strings.Repeat("d", id),
	}
}

func TestRetrieve_MissingQuestion(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(&fakeEmbedder{}, searcher, Config{})

	tests := []string{"", "   ", "\n\t"}
	for _, question := range tests {
		_, err := r.Retrieve(t.Context(), models.UserRequest{Question: question})
		if !errors.Is(err, ErrMissingQuestion) {
			t.Errorf("Retrieve(%q) error = %v, want ErrMissingQuestion", question, err)
		}
	}
	if searcher.calls != 0 {
		t.Errorf("no retrieval should run before validation, got %d searches", searcher.calls)
	}
}

func TestRetrieve_PoolOfThreeKeepsAllThree(t *testing.T) {
	searcher := &fakeSearcher{responses: [][]models.RetrievedMatch{
		{match(1, 0.10), match(2, 0.15), match(3, 0.20)},
	}}
	r := New(&fakeEmbedder{}, searcher, Config{})

	ev, err := r.Retrieve(t.Context(), models.UserRequest{Question: "What is a dataframe?"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if len(ev.Matches) != 3 {
		t.Fatalf("kept %d matches, want 3", len(ev.Matches))
	}
	if len(ev.Links) != 3 {
		t.Errorf("links = %d, want 3", len(ev.Links))
	}
	wantContext := ev.Matches[0].Text + "\n" + ev.Matches[1].Text + "\n" + ev.Matches[2].Text
	if ev.Context != wantContext {
		t.Errorf("context = %q, want %q", ev.Context, wantContext)
	}
}

func TestRetrieve_PoolOfFiveKeepsTopFour_CitesThree(t *testing.T) {
	// Two signals pool five matches with distances out of order.
	searcher := &fakeSearcher{responses: [][]models.RetrievedMatch{
		{match(1, 0.2), match(2, 0.05), match(3, 0.9)},
		{match(4, 0.1), match(5, 0.3)},
	}}
	r := New(&fakeEmbedder{}, searcher, Config{})

	ev, err := r.Retrieve(t.Context(), models.UserRequest{
		Question: "deadline?",
		Link:     "https://forum.example.com/t/ga4/101",
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if len(ev.Matches) != 4 {
		t.Fatalf("kept %d matches, want 4", len(ev.Matches))
	}
	wantIDs := []int{2, 4, 1, 5} // ascending by distance 0.05, 0.1, 0.2, 0.3
	for i, want := range wantIDs {
		if ev.Matches[i].ID != want {
			t.Errorf("rank %d id = %d, want %d", i, ev.Matches[i].ID, want)
		}
	}

	// All four texts feed the context, only three are cited.
	if got := strings.Count(ev.Context, "\n"); got != 3 {
		t.Errorf("context has %d separators, want 3", got)
	}
	if len(ev.Links) != 3 {
		t.Errorf("links = %d, want 3", len(ev.Links))
	}
	if ev.Links[2].URL != ev.Matches[2].URL {
		t.Errorf("third citation = %q, want %q", ev.Links[2].URL, ev.Matches[2].URL)
	}
}

func TestRetrieve_SmallPools(t *testing.T) {
	tests := []struct {
		name     string
		pool     []models.RetrievedMatch
		wantKeep int
	}{
		{"pool of one", []models.RetrievedMatch{match(1, 0.4)}, 1},
		{"pool of two", []models.RetrievedMatch{match(1, 0.4), match(2, 0.5)}, 2},
		{"pool of four", []models.RetrievedMatch{match(1, 0.1), match(2, 0.2), match(3, 0.3), match(4, 0.4)}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{responses: [][]models.RetrievedMatch{tt.pool}}
			r := New(&fakeEmbedder{}, searcher, Config{})

			ev, err := r.Retrieve(t.Context(), models.UserRequest{Question: "q"})
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if len(ev.Matches) != tt.wantKeep {
				t.Errorf("kept %d, want %d", len(ev.Matches), tt.wantKeep)
			}
			if len(ev.Links) > 3 {
				t.Errorf("links = %d, must never exceed 3", len(ev.Links))
			}
		})
	}
}

func TestRetrieve_SignalPrecedenceAndAppend(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{responses: [][]models.RetrievedMatch{
		{match(1, 0.5)}, // link
		{match(2, 0.5)}, // image
		{match(3, 0.5)}, // question
	}}
	r := New(embedder, searcher, Config{})

	ev, err := r.Retrieve(t.Context(), models.UserRequest{
		Question: "what does the error mean?",
		Image:    tinyPNGBase64(t),
		Link:     "https://forum.example.com/t/err/7",
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if searcher.calls != 3 {
		t.Fatalf("expected 3 searches, got %d", searcher.calls)
	}
	if len(embedder.inputs) != 3 {
		t.Fatalf("expected 3 embed calls, got %d", len(embedder.inputs))
	}
	if _, ok := embedder.inputs[0].(embeddings.Text); !ok {
		t.Error("first signal should be the link text")
	}
	if _, ok := embedder.inputs[1].(embeddings.Image); !ok {
		t.Error("second signal should be the image")
	}
	if q, ok := embedder.inputs[2].(embeddings.Text); !ok || string(q) != "what does the error mean?" {
		t.Errorf("third signal should be the question, got %v", embedder.inputs[2])
	}

	// Equal distances: stable sort keeps signal precedence order.
	if ev.Matches[0].ID != 1 || ev.Matches[1].ID != 2 || ev.Matches[2].ID != 3 {
		t.Errorf("tie-break should keep insertion order, got %+v", ev.Matches)
	}
}

func TestRetrieve_EmptyIndexYieldsEmptyEvidence(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeSearcher{}, Config{})

	ev, err := r.Retrieve(t.Context(), models.UserRequest{Question: "anything?"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if ev.Context != "" || len(ev.Links) != 0 {
		t.Errorf("empty index should yield empty evidence, got %+v", ev)
	}
}

func TestRetrieve_InvalidImage(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeSearcher{}, Config{})

	tests := []string{"not base64 at all!!!", base64.StdEncoding.EncodeToString([]byte("not an image"))}
	for _, img := range tests {
		_, err := r.Retrieve(t.Context(), models.UserRequest{Question: "q", Image: img})
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("Retrieve() error = %v, want ErrInvalidImage", err)
		}
	}
}

func TestNormalizeImage_DataURLPrefix(t *testing.T) {
	encoded := "data:image/png;base64," + tinyPNGBase64(t)

	out, err := normalizeImage(encoded)
	if err != nil {
		t.Fatalf("normalizeImage() error = %v", err)
	}
	if len(out) == 0 {
		t.Error("normalizeImage() returned empty bytes")
	}
}

func TestNormalizeImage_Deterministic(t *testing.T) {
	encoded := tinyPNGBase64(t)

	first, err := normalizeImage(encoded)
	if err != nil {
		t.Fatalf("normalizeImage() error = %v", err)
	}
	second, err := normalizeImage(encoded)
	if err != nil {
		t.Fatalf("normalizeImage() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("normalizeImage() must be deterministic for identical input")
	}
}

func tinyPNGBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
