package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, baseURL string) *ElevenLabs {
	t.Helper()
	p, err := New(WithAPIKey("xi-key"), WithVoice("rachel"), WithBaseURL(baseURL))
	require.NoError(t, err)
	return p
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/rachel", r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "It's 3 PM.", req["text"])

		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	audio, err := p.Synthesize(context.Background(), "It's 3 PM.")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "audio/mpeg", p.ContentType())
}

func TestSynthesizeFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

func TestSynthesizeEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("ELEVENLABS_VOICE_ID", "")

	_, err := New()
	assert.Error(t, err)

	_, err = New(WithAPIKey("key"))
	assert.Error(t, err, "voice ID is required too")
}
