package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voiceloop/audio"
	"github.com/agentplexus/voiceloop/session"
)

func dialStream(t *testing.T, e *env) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(e.handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStreamVoiceTurn(t *testing.T) {
	e := newEnv(t)
	conn := dialStream(t, e)

	wav := audio.EncodeWAV([]int16{10, 20, 30, 40}, 16000)

	// Send the utterance in two chunks, then close it with END.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wav[:20]))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wav[20:]))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("END")))

	msgType, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, []byte("mp3"), reply)
}

func TestStreamRejectsGarbageAudio(t *testing.T) {
	e := newEnv(t)
	conn := dialStream(t, e)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("not audio")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("END")))

	msgType, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Contains(t, string(reply), "ERROR")

	// The stream stays usable after a failed utterance.
	wav := audio.EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wav))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("END")))

	msgType, _, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
}

type rateTranscriber struct {
	lastRate int
}

func (s *rateTranscriber) Name() string    { return "stub" }
func (s *rateTranscriber) SampleRate() int { return 16000 }
func (s *rateTranscriber) Transcribe(ctx context.Context, samples []int16, rate int) (string, error) {
	s.lastRate = rate
	return "hello", nil
}

func TestStreamWithoutResamplerPassesAudioThrough(t *testing.T) {
	var logBuf bytes.Buffer
	tr := &rateTranscriber{}
	chat := NewChat(ChatDeps{
		Sessions: session.NewStore(),
		Dialogue: &stubDialogue{reply: "hi", token: "T1"},
		STT:      tr,
		TTS:      &stubSynthesizer{data: []byte("mp3")},
		Logger:   zerolog.New(&logBuf),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stream", chat.handleStream)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	wav := audio.EncodeWAV([]int16{1, 2, 3, 4}, 8000)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wav))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("END")))

	msgType, _, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType, "the turn still completes")

	assert.Equal(t, 8000, tr.lastRate, "audio reaches the model at its original rate")
	assert.Contains(t, logBuf.String(), "no resampler configured")
}

func TestStreamIgnoresUnknownTextFrames(t *testing.T) {
	e := newEnv(t)
	conn := dialStream(t, e)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("PING")))

	wav := audio.EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, wav))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("END")))

	msgType, _, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
}
