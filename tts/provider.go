// Package tts converts reply text to speech audio.
//
// Synthesis deliberately never retries: replaying a stale TTS request on a
// live call risks audible duplicates, so a failed synthesis fails the turn.
package tts

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

// Provider converts text to audio bytes.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// ContentType returns the MIME type of synthesized audio.
	ContentType() string

	// Synthesize converts text to audio. Any failure is fatal to the
	// current turn.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Verify interface compliance at compile time.
var _ Provider = (*ElevenLabs)(nil)

// ElevenLabs implements Provider against the ElevenLabs REST API.
type ElevenLabs struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

// Option configures the ElevenLabs provider.
type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

// WithAPIKey sets the API key. Falls back to ELEVENLABS_API_KEY.
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

// WithVoice sets the voice ID. Falls back to ELEVENLABS_VOICE_ID.
func WithVoice(voiceID string) Option {
	return func(o *options) {
		o.voiceID = voiceID
	}
}

// WithModel sets the synthesis model.
func WithModel(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates an ElevenLabs synthesis provider.
func New(opts ...Option) (*ElevenLabs, error) {
	cfg := &options{
		baseURL: "https://api.elevenlabs.io/v1",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiKey := cfg.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("tts: API key is required (set ELEVENLABS_API_KEY)")
	}

	voiceID := cfg.voiceID
	if voiceID == "" {
		voiceID = os.Getenv("ELEVENLABS_VOICE_ID")
	}
	if voiceID == "" {
		return nil, errors.New("tts: voice ID is required (set ELEVENLABS_VOICE_ID)")
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &ElevenLabs{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		voiceID:    voiceID,
		modelID:    cfg.modelID,
		httpClient: httpClient,
	}, nil
}

// Name returns the provider name.
func (e *ElevenLabs) Name() string {
	return "elevenlabs"
}

// ContentType returns the MIME type of synthesized audio.
func (e *ElevenLabs) ContentType() string {
	return "audio/mpeg"
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Synthesize posts text to the voice endpoint and returns MP3 bytes.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, errors.Wrap(err, "tts: encode request")
	}

	endpoint := e.baseURL + "/text-to-speech/" + e.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "tts: build request")
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "tts: synthesis request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "tts: read audio")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("tts: voice service returned status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, errors.New("tts: voice service returned no audio")
	}

	return body, nil
}
