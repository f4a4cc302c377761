package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voiceloop/audio"
)

func newTestWhisper(t *testing.T, baseURL string) *Whisper {
	t.Helper()
	w, err := New(WithAPIKey("test-key"), WithBaseURL(baseURL), WithLanguage("en"))
	require.NoError(t, err)
	return w
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New()
	assert.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		wav, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.True(t, audio.IsWAV(wav), "uploaded samples must be WAV-wrapped")

		_, _ = w.Write([]byte("what time is it\n"))
	}))
	defer srv.Close()

	whisper := newTestWhisper(t, srv.URL)
	text, err := whisper.Transcribe(context.Background(), []int16{0, 100, -100}, 16000)
	require.NoError(t, err)
	assert.Equal(t, "what time is it", text, "transcript is trimmed")
}

func TestTranscribeSilenceYieldsEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	}))
	defer srv.Close()

	whisper := newTestWhisper(t, srv.URL)
	text, err := whisper.Transcribe(context.Background(), []int16{0, 0, 0}, 16000)
	require.NoError(t, err, "no speech is not an error")
	assert.Empty(t, text)
}

func TestTranscribeBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	whisper := newTestWhisper(t, srv.URL)
	_, err := whisper.Transcribe(context.Background(), []int16{1, 2}, 16000)
	assert.Error(t, err)
}

func TestSampleRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	whisper := newTestWhisper(t, srv.URL)
	assert.Equal(t, 16000, whisper.SampleRate())
	assert.Equal(t, "whisper", whisper.Name())
}
