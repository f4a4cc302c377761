// Package stt converts recorded speech to text.
//
// The default provider speaks the OpenAI audio-transcription wire format,
// which a locally hosted whisper-server also implements, so the same code
// path covers both a hosted backend and an offline model.
package stt

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/agentplexus/voiceloop"
	"github.com/agentplexus/voiceloop/audio"
)

// Provider converts flat mono PCM samples to text.
//
// Callers are responsible for folding multi-channel input to mono and for
// resampling to the provider's required rate; samples at a mismatched rate
// are still accepted but transcription quality degrades.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// SampleRate returns the sample rate the underlying model expects,
	// or 0 when any rate is acceptable.
	SampleRate() int

	// Transcribe converts samples to trimmed text. Empty text means no
	// speech was detected; that is not an error.
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// Verify interface compliance at compile time.
var _ Provider = (*Whisper)(nil)

// Whisper implements Provider against an OpenAI-compatible transcription
// endpoint.
type Whisper struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// Option configures the Whisper provider.
type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// WithAPIKey sets the API key. Falls back to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL points the provider at a different endpoint, e.g. a local
// whisper-server.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithLanguage hints the spoken language to the model.
func WithLanguage(lang string) Option {
	return func(o *options) {
		o.language = lang
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates a Whisper transcription provider.
func New(opts ...Option) (*Whisper, error) {
	cfg := &options{
		baseURL: "https://api.openai.com/v1",
		model:   "whisper-1",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiKey := cfg.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("stt: API key is required (set OPENAI_API_KEY)")
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Whisper{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		model:      cfg.model,
		language:   cfg.language,
		httpClient: httpClient,
	}, nil
}

// Name returns the provider name.
func (w *Whisper) Name() string {
	return "whisper"
}

// SampleRate returns the rate Whisper-family models expect.
func (w *Whisper) SampleRate() int {
	return voiceloop.WhisperSampleRate
}

// Transcribe wraps the samples in a WAV container and posts them to the
// transcription endpoint. The response body is the bare transcript.
func (w *Whisper) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	wav := audio.EncodeWAV(samples, sampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", errors.Wrap(err, "stt: build form")
	}
	if _, err := fw.Write(wav); err != nil {
		return "", errors.Wrap(err, "stt: write audio")
	}
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "text")
	if w.language != "" {
		_ = mw.WriteField("language", w.language)
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "stt: close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", errors.Wrap(err, "stt: build request")
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "stt: transcription request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "stt: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("stt: transcription failed with status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return strings.TrimSpace(string(raw)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
