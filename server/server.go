// Package server exposes the orchestrator over the telephony provider's
// webhook protocol: voice and recording callbacks, the per-call reply-audio
// resource, a messaging endpoint, and a WebSocket voice-message channel.
package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentplexus/voiceloop/audiostore"
	"github.com/agentplexus/voiceloop/call"
	"github.com/agentplexus/voiceloop/twiml"
)

// RecordingURLResolver derives a fetchable media URL from a recording SID
// when the callback carries no usable URL.
type RecordingURLResolver interface {
	RecordingURL(recordingSID string) string
}

// Deps are the server's collaborators. Chat holds what the messaging and
// streaming endpoints need beyond the orchestrator.
type Deps struct {
	Orchestrator *call.Orchestrator
	Artifacts    *audiostore.Store
	Recordings   RecordingURLResolver
	Chat         *Chat
	Logger       zerolog.Logger
}

// Server routes provider webhooks to the orchestrator.
type Server struct {
	orch       *call.Orchestrator
	artifacts  *audiostore.Store
	recordings RecordingURLResolver
	chat       *Chat
	logger     zerolog.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{
		orch:       deps.Orchestrator,
		artifacts:  deps.Artifacts,
		recordings: deps.Recordings,
		chat:       deps.Chat,
		logger:     deps.Logger,
	}
}

// Handler returns the webhook mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice", s.handleVoice)
	mux.HandleFunc("GET /voice", s.handleVoice) // Twilio consoles probe with GET
	mux.HandleFunc("POST /recording", s.handleRecording)
	mux.HandleFunc("POST /recording-status", s.handleRecordingStatus)
	mux.HandleFunc("GET /audio/{call}", s.handleAudio)
	if s.chat != nil {
		mux.HandleFunc("POST /whatsapp", s.chat.handleWhatsApp)
		mux.HandleFunc("GET /stream", s.chat.handleStream)
	}
	return mux
}

// handleVoice answers the initial inbound-call webhook.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ev := call.IncomingCall{
		CallID:       formValue(r, "CallSid", "unknown"),
		CallerNumber: r.FormValue("From"),
	}
	s.writeTwiML(w, s.orch.HandleIncomingCall(r.Context(), ev))
}

// handleRecording answers the finished-recording webhook and runs one turn.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	callID := formValue(r, "CallSid", "unknown")
	recordingURL := r.FormValue("RecordingUrl")
	recordingSID := r.FormValue("RecordingSid")
	duration, _ := strconv.Atoi(r.FormValue("RecordingDuration"))

	// Some callbacks carry a SID but either no media URL or a TwiML
	// document URL; derive the canonical WAV URL in that case.
	if recordingSID != "" && (recordingURL == "" || strings.HasSuffix(recordingURL, ".xml")) {
		recordingURL = s.recordings.RecordingURL(recordingSID)
	}

	ev := call.RecordingReady{
		CallID:       callID,
		RecordingURL: recordingURL,
		Duration:     duration,
	}
	s.writeTwiML(w, s.orch.HandleRecordingReady(r.Context(), ev))
}

// handleRecordingStatus consumes the out-of-band status callback.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	event := r.FormValue("RecordingStatusCallbackEvent")
	if event == "" {
		event = r.FormValue("RecordingStatus")
	}
	duration, _ := strconv.Atoi(r.FormValue("RecordingDuration"))

	s.orch.HandleRecordingStatus(r.Context(), call.RecordingStatus{
		CallID:   formValue(r, "CallSid", "unknown"),
		Event:    event,
		Duration: duration,
		Digits:   r.FormValue("Digits"),
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleAudio serves the call's pending reply audio.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call")
	artifact, ok := s.artifacts.Get(callID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	if _, err := w.Write(artifact.Data); err != nil {
		s.logger.Error().Err(err).Str("call_id", callID).Msg("failed to serve reply audio")
	}
}

func (s *Server) writeTwiML(w http.ResponseWriter, directives []twiml.Directive) {
	out, err := twiml.Render(directives)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to render response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write([]byte(out)); err != nil {
		s.logger.Error().Err(err).Msg("failed to write response")
	}
}

func formValue(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
