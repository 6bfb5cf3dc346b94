package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message represents a chat message in the provider API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderError is returned when the provider rejects or fails a request.
// Status is the HTTP status code, or 0 for transport-level failures.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

// Client is the narrow contract the pipeline consumes: chat generation and
// text embedding. Implemented by HTTPClient for OpenAI-compatible servers.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	EmbedModel  string
	Temperature float64
	MaxTokens   int
}

// HTTPClient talks to an OpenAI-compatible chat/embeddings API over HTTP.
type HTTPClient struct {
	opts       Options
	httpClient *http.Client
}

// New creates an HTTPClient targeting the given provider endpoint.
func New(opts Options) *HTTPClient {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &HTTPClient{
		opts: opts,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// chatRequest is the JSON body for POST /v1/chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse is the JSON returned by POST /v1/chat/completions.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends messages to the configured model and returns the assistant's
// response text.
func (c *HTTPClient) Chat(ctx context.Context, messages []Message) (string, error) {
	body := chatRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}

	var result chatResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", &ProviderError{Message: "empty choices in chat response"}
	}
	return result.Choices[0].Message.Content, nil
}

// embedRequest is the JSON body for POST /v1/embeddings.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the JSON returned by POST /v1/embeddings.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns embedding vectors for the given texts, in input order.
func (c *HTTPClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := embedRequest{Model: c.opts.EmbedModel, Input: texts}
	var result embedResponse
	if err := c.post(ctx, "/v1/embeddings", body, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, &ProviderError{Message: fmt.Sprintf("got %d embeddings for %d inputs", len(result.Data), len(texts))}
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &ProviderError{Message: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Status: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

// readErrorBody extracts a useful message from a non-200 response. Providers
// return {"error": {"message": ...}}; fall back to the raw body, truncated.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no response body"
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(data)
}
