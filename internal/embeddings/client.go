package embeddings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config holds embeddings client configuration.
type Config struct {
	BaseURL string // Base URL of the embedding inference service
	Model   string // Model name (e.g., "openai/clip-vit-base-patch32")
	Timeout time.Duration
}

// Input is an embeddable value: either Text or Image. Both map into
// the same embedding space, so cross-modal distances are meaningful.
type Input interface {
	isInput()
}

// Text is a text input.
type Text string

func (Text) isInput() {}

// Image is a raw image input.
type Image []byte

func (Image) isInput() {}

// Client wraps the embedding inference service API. The service runs
// deterministic inference: identical inputs yield identical vectors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    config.BaseURL,
		model:      config.Model,
	}, nil
}

// embeddingRequest is the request payload for the embeddings API.
// Exactly one of Input or Image is set.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input,omitempty"`
	Image string   `json:"image,omitempty"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// MaxInputChars bounds a single text input. The model truncates to its
// own token limit anyway; this just keeps request payloads sane.
const MaxInputChars = 20000

// Embed generates an embedding vector for a single text or image input.
func (c *Client) Embed(ctx context.Context, input Input) ([]float32, error) {
	switch v := input.(type) {
	case Text:
		vectors, err := c.EmbedTexts(ctx, []string{string(v)})
		if err != nil {
			return nil, err
		}
		return vectors[0], nil
	case Image:
		return c.embedImage(ctx, v)
	default:
		return nil, fmt.Errorf("unsupported input type %T", input)
	}
}

// EmbedTexts batch-encodes strings, returning one vector per input in
// the same order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	truncated := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > MaxInputChars {
			text = text[:MaxInputChars]
		}
		truncated[i] = text
	}
	slog.Debug("generating text embeddings", "count", len(truncated))

	resp, err := c.post(ctx, embeddingRequest{Model: c.model, Input: truncated})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// embedImage encodes a single image into the shared embedding space.
func (c *Client) embedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	slog.Debug("generating image embedding", "bytes", len(image))

	resp, err := c.post(ctx, embeddingRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, req embeddingRequest) (*embeddingResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	return &embResp, nil
}

// Dimensions returns the embedding width for known models.
func Dimensions(model string) int {
	switch model {
	case "openai/clip-vit-base-patch32", "openai/clip-vit-base-patch16":
		return 512
	case "openai/clip-vit-large-patch14":
		return 768
	default:
		return 512 // default assumption
	}
}
