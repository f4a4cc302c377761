package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentplexus/voiceloop/audio"
	"github.com/agentplexus/voiceloop/call"
	"github.com/agentplexus/voiceloop/dialogue"
	"github.com/agentplexus/voiceloop/session"
	"github.com/agentplexus/voiceloop/stt"
	"github.com/agentplexus/voiceloop/tts"
	"github.com/agentplexus/voiceloop/twiml"
)

// Chat serves the non-telephony dialogue surfaces: the WhatsApp webhook and
// the WebSocket voice-message channel. Both thread conversation context the
// same way calls do, with sessions keyed by sender or stream ID instead of
// call SID.
type Chat struct {
	sessions  *session.Store
	dialogue  dialogue.Client
	stt       stt.Provider
	tts       tts.Provider
	resampler audio.Resampler
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

// ChatDeps are the Chat collaborators.
type ChatDeps struct {
	Sessions  *session.Store
	Dialogue  dialogue.Client
	STT       stt.Provider
	TTS       tts.Provider
	Resampler audio.Resampler
	Logger    zerolog.Logger
}

// NewChat creates the messaging and streaming surface.
func NewChat(deps ChatDeps) *Chat {
	return &Chat{
		sessions:  deps.Sessions,
		dialogue:  deps.Dialogue,
		stt:       deps.STT,
		tts:       deps.TTS,
		resampler: deps.Resampler,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: deps.Logger,
	}
}

// handleWhatsApp answers a messaging webhook with a threaded dialogue reply.
func (c *Chat) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	body := r.FormValue("Body")
	sender := formValue(r, "From", "unknown")
	logger := c.logger.With().Str("sender", sender).Logger()

	if body == "" {
		writeMessage(w, logger, "I didn't receive any text. Please try again.")
		return
	}
	logger.Info().Str("text", body).Msg("inbound message")

	sess := c.sessions.GetOrCreate(sender)
	reply, token, err := c.dialogue.Ask(r.Context(), body, sess.ContinuationToken)
	if err != nil {
		logger.Error().Err(err).Msg("dialogue backend failed")
		writeMessage(w, logger, "I'm sorry, I cannot answer that right now. Please try again later.")
		return
	}
	c.sessions.UpdateContinuation(sender, token)

	writeMessage(w, logger, reply)
}

// handleStream runs a voice-message loop over a WebSocket: binary frames
// accumulate audio, a text "END" frame closes the utterance and the reply
// comes back as one binary audio frame.
func (c *Chat) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	streamID := uuid.NewString()
	logger := c.logger.With().Str("stream_id", streamID).Logger()
	logger.Info().Msg("stream connected")

	defer func() {
		c.sessions.Remove(streamID)
		_ = conn.Close()
		logger.Info().Msg("stream closed")
	}()

	c.sessions.GetOrCreate(streamID)

	var buf bytes.Buffer
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			buf.Write(data)
		case websocket.TextMessage:
			if string(data) != "END" {
				continue
			}
			utterance := buf.Bytes()
			buf.Reset()

			reply, err := c.processUtterance(r.Context(), logger, streamID, utterance)
			if err != nil {
				logger.Error().Err(err).Msg("utterance processing failed")
				if werr := conn.WriteMessage(websocket.TextMessage, []byte("ERROR: could not process your message")); werr != nil {
					return
				}
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
				return
			}
		}
	}
}

// processUtterance is one streamed turn: decode, transcribe, ask,
// synthesize.
func (c *Chat) processUtterance(ctx context.Context, logger zerolog.Logger, streamID string, data []byte) ([]byte, error) {
	clip, err := audio.Decode(data)
	if err != nil {
		return nil, err
	}

	samples := audio.ToMono(clip.Samples, clip.Channels)
	rate := clip.SampleRate
	if want := c.stt.SampleRate(); want > 0 && rate != want {
		if c.resampler != nil {
			samples = c.resampler(samples, rate, want)
			rate = want
		} else {
			logger.Warn().
				Int("sample_rate", rate).
				Int("required_rate", want).
				Msg("no resampler configured, passing audio through at original rate")
		}
	}

	text, err := c.stt.Transcribe(ctx, samples, rate)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, call.ErrNoSpeechDetected
	}
	logger.Info().Str("transcript", text).Msg("stream utterance")

	sess := c.sessions.GetOrCreate(streamID)
	reply, token, err := c.dialogue.Ask(ctx, text, sess.ContinuationToken)
	if err != nil {
		return nil, err
	}
	c.sessions.UpdateContinuation(streamID, token)

	return c.tts.Synthesize(ctx, reply)
}

func writeMessage(w http.ResponseWriter, logger zerolog.Logger, body string) {
	out := twiml.MustRender([]twiml.Directive{twiml.Message{Body: body}})
	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write([]byte(out)); err != nil {
		logger.Error().Err(err).Msg("failed to write message response")
	}
}
