// Package ollama provides a minimal HTTP client for a local Ollama instance,
// covering the embedding and chat endpoints the application uses.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyEmbedding is returned when the embed endpoint responds without a vector.
var ErrEmptyEmbedding = errors.New("ollama: empty embedding in response")

// Message represents a chat message in the Ollama API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client communicates with a local Ollama instance over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given Ollama base URL.
// Generation can take tens of seconds for large models, so the underlying
// HTTP client has no timeout; callers bound requests via context.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
	}
}

// embedRequest is the JSON body for POST /api/embed.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON returned by POST /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for the given text using the specified model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var out embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return out.Embeddings[0], nil
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// chatResponse is the JSON returned by POST /api/chat (non-streaming).
type chatResponse struct {
	Message Message `json:"message"`
}

// Chat sends messages to the given model and returns the assistant's response.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	var out chatResponse
	if err := c.post(ctx, "/api/chat", chatRequest{Model: model, Messages: messages, Stream: false}, &out); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	return out.Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// EmbeddingClient binds a Client to a fixed embedding model, satisfying the
// embedding interface used by the answer engine and the rebuild job.
type EmbeddingClient struct {
	client *Client
	model  string
}

// NewEmbeddingClient creates an EmbeddingClient for the given model.
func NewEmbeddingClient(client *Client, model string) *EmbeddingClient {
	return &EmbeddingClient{client: client, model: model}
}

// CreateEmbedding returns the embedding vector for the given input text.
func (e *EmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, input)
}

// GenerationClient binds a Client to a fixed chat model, satisfying the
// generation interface used by the answer engine.
type GenerationClient struct {
	client *Client
	model  string
}

// NewGenerationClient creates a GenerationClient for the given model.
func NewGenerationClient(client *Client, model string) *GenerationClient {
	return &GenerationClient{client: client, model: model}
}

// Generate sends the prompt as a single user message and returns the reply.
func (g *GenerationClient) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Chat(ctx, g.model, []Message{{Role: "user", Content: prompt}})
}
