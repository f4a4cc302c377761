// Package dialogue sends user utterances to a conversational-AI backend.
//
// Conversation context lives on the backend: each reply carries a
// continuation token, and presenting that token on the next request threads
// the turns together without resending transcripts. Tokens are opaque here;
// only the latest one matters.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client asks the backend a question and returns its reply together with
// the continuation token for the next turn.
//
// Failures are fatal to the current turn; callers must not retry.
type Client interface {
	// Ask sends text, threading the previous exchange when continuation
	// is non-empty. The returned token replaces any earlier one.
	Ask(ctx context.Context, text, continuation string) (reply, token string, err error)
}

// Verify interface compliance at compile time.
var _ Client = (*OpenAI)(nil)

// OpenAI implements Client against the OpenAI Responses API, which retains
// conversation state server-side keyed by response ID.
type OpenAI struct {
	apiKey       string
	baseURL      string
	model        string
	instructions string
	httpClient   *http.Client
}

// Option configures the OpenAI client.
type Option func(*options)

type options struct {
	apiKey       string
	baseURL      string
	model        string
	instructions string
	httpClient   *http.Client
}

// WithAPIKey sets the API key. Falls back to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithInstructions sets the system prompt sent with every turn.
func WithInstructions(instructions string) Option {
	return func(o *options) {
		o.instructions = instructions
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates an OpenAI dialogue client.
func New(opts ...Option) (*OpenAI, error) {
	cfg := &options{
		baseURL: "https://api.openai.com/v1",
		model:   "gpt-4",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiKey := cfg.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("dialogue: API key is required (set OPENAI_API_KEY)")
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &OpenAI{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(cfg.baseURL, "/"),
		model:        cfg.model,
		instructions: cfg.instructions,
		httpClient:   httpClient,
	}, nil
}

type responsesRequest struct {
	Model              string `json:"model"`
	Input              string `json:"input"`
	Instructions       string `json:"instructions,omitempty"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
}

type responsesResponse struct {
	ID     string `json:"id"`
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Ask sends one turn to the Responses API.
func (c *OpenAI) Ask(ctx context.Context, text, continuation string) (string, string, error) {
	payload, err := json.Marshal(responsesRequest{
		Model:              c.model,
		Input:              text,
		Instructions:       c.instructions,
		PreviousResponseID: continuation,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "dialogue: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", "", errors.Wrap(err, "dialogue: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", errors.Wrap(err, "dialogue: backend request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", errors.Wrap(err, "dialogue: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Errorf("dialogue: backend returned status %d", resp.StatusCode)
	}

	var parsed responsesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", errors.Wrap(err, "dialogue: decode response")
	}
	if parsed.ID == "" {
		return "", "", errors.New("dialogue: response missing id")
	}

	reply := extractText(parsed)
	if reply == "" {
		return "", "", errors.New("dialogue: response carried no text")
	}

	return reply, parsed.ID, nil
}

func extractText(r responsesResponse) string {
	for _, out := range r.Output {
		for _, content := range out.Content {
			if text := strings.TrimSpace(content.Text); text != "" {
				return text
			}
		}
	}
	return ""
}
