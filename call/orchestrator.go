// Package call implements the per-call state machine that turns telephony
// webhook events into provider directives.
//
// Each turn walks Greeting → AwaitingRecording → Transcribing → Querying →
// Synthesizing → Replaying and either loops back to AwaitingRecording or
// ends in Terminated. Every path into Terminated releases the call's session
// and its synthesized-audio artifact; cleanup is idempotent so out-of-band
// status callbacks arriving after a failure are harmless.
package call

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agentplexus/voiceloop"
	"github.com/agentplexus/voiceloop/audio"
	"github.com/agentplexus/voiceloop/audiostore"
	"github.com/agentplexus/voiceloop/dialogue"
	"github.com/agentplexus/voiceloop/session"
	"github.com/agentplexus/voiceloop/stt"
	"github.com/agentplexus/voiceloop/tts"
	"github.com/agentplexus/voiceloop/twiml"
)

// State names one stage of the per-call machine.
type State string

// Call states.
const (
	StateGreeting          State = "greeting"
	StateAwaitingRecording State = "awaiting_recording"
	StateTranscribing      State = "transcribing"
	StateQuerying          State = "querying"
	StateSynthesizing      State = "synthesizing"
	StateReplaying         State = "replaying"
	StateTerminated        State = "terminated"
)

// ErrNoSpeechDetected marks the terminal branch where transcription
// succeeded but produced no text. It is an end condition, not a failure.
var ErrNoSpeechDetected = errors.New("call: no speech detected")

// Fixed user-facing texts. Failures never surface technical detail; each
// failure class maps to one of these.
const (
	MsgNoCapture       = "I didn't catch that. Goodbye."
	MsgFetchFailed     = "Sorry, there was an error retrieving your recording. Goodbye."
	MsgBadAudio        = "Sorry, I cannot process the audio. Goodbye."
	MsgSilence         = "It seems I didn't hear you say anything. Goodbye."
	MsgDialogueFailed  = "I'm sorry, I cannot answer that right now. Let's try again later. Goodbye."
	MsgSynthesisFailed = "Sorry, I'm having issues speaking the answer. Goodbye."

	DefaultGreeting = "Hello, I am your AI assistant. You can ask me any question. Please speak after the beep."
	DefaultRePrompt = "You can ask another question after the beep."
)

// IncomingCall is the first inbound event for a call.
type IncomingCall struct {
	CallID       string
	CallerNumber string
}

// RecordingReady reports a finished capture. RecordingURL is already
// resolved to a fetchable media URL by the transport layer; Duration is in
// seconds.
type RecordingReady struct {
	CallID       string
	RecordingURL string
	Duration     int
}

// RecordingStatus is the out-of-band status callback, used only to detect
// termination conditions.
type RecordingStatus struct {
	CallID   string
	Event    string
	Duration int
	Digits   string
}

// Fetcher retrieves recording bytes, retrying internally.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config tunes the orchestrator.
type Config struct {
	// RecordingAction is the callback URL Twilio posts finished
	// recordings to.
	RecordingAction string

	// RecordingStatusCallback receives out-of-band recording events.
	RecordingStatusCallback string

	// AudioBaseURL prefixes per-call reply-audio URLs; the call ID is
	// appended.
	AudioBaseURL string

	// Greeting is spoken on call start; RePrompt after each reply.
	Greeting string
	RePrompt string

	// Voice selects the provider voice for spoken prompts.
	Voice string

	// MaxRecordingSeconds and SilenceTimeoutSeconds bound each capture.
	MaxRecordingSeconds   int
	SilenceTimeoutSeconds int

	// Resampler converts recordings to the transcriber's required rate.
	// When nil and rates differ, audio passes through at its original
	// rate: an explicit degraded mode that is logged, not hidden.
	Resampler audio.Resampler
}

// CallHanger ends a live call leg out of band, beyond the directive-driven
// hangup spoken into the response stream.
type CallHanger interface {
	HangupCall(ctx context.Context, callSID string) error
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Sessions    *session.Store
	Artifacts   *audiostore.Store
	Fetcher     Fetcher
	Transcriber stt.Provider
	Dialogue    dialogue.Client
	Synthesizer tts.Provider

	// Hangup is optional. When set, out-of-band call-end signals also tear
	// down the call leg at the provider.
	Hangup CallHanger

	Logger zerolog.Logger
}

// Orchestrator sequences one call's turns: fetch, transcribe, query,
// synthesize, replay, and guaranteed cleanup.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("call: session store is required")
	case deps.Artifacts == nil:
		return nil, errors.New("call: artifact store is required")
	case deps.Fetcher == nil:
		return nil, errors.New("call: fetcher is required")
	case deps.Transcriber == nil:
		return nil, errors.New("call: transcriber is required")
	case deps.Dialogue == nil:
		return nil, errors.New("call: dialogue client is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("call: synthesizer is required")
	}

	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.RePrompt == "" {
		cfg.RePrompt = DefaultRePrompt
	}
	if cfg.MaxRecordingSeconds <= 0 {
		cfg.MaxRecordingSeconds = voiceloop.DefaultMaxRecordingSeconds
	}
	if cfg.SilenceTimeoutSeconds <= 0 {
		cfg.SilenceTimeoutSeconds = voiceloop.DefaultSilenceTimeoutSeconds
	}

	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}, nil
}

// HandleIncomingCall creates the call's session and emits the greeting plus
// the first capture prompt.
func (o *Orchestrator) HandleIncomingCall(ctx context.Context, ev IncomingCall) []twiml.Directive {
	o.logger.Info().
		Str("call_id", ev.CallID).
		Str("caller", ev.CallerNumber).
		Str("state", string(StateGreeting)).
		Msg("incoming call")

	o.deps.Sessions.GetOrCreate(ev.CallID)

	return append(
		[]twiml.Directive{twiml.Speak{Text: o.cfg.Greeting, Voice: o.cfg.Voice}},
		o.recordDirective(),
	)
}

// HandleRecordingReady runs one full turn. It always returns directives; any
// stage failure has already been converted into an apology plus Hangup, with
// cleanup done.
func (o *Orchestrator) HandleRecordingReady(ctx context.Context, ev RecordingReady) []twiml.Directive {
	logger := o.logger.With().Str("call_id", ev.CallID).Logger()

	state := StateAwaitingRecording
	logger.Info().
		Str("state", string(state)).
		Int("duration", ev.Duration).
		Msg("recording callback")

	// No audio was captured: terminate without touching any later stage.
	if ev.RecordingURL == "" || ev.Duration == 0 {
		logger.Info().Msg("no audio captured, ending call")
		return o.terminate(logger, ev.CallID, MsgNoCapture)
	}

	state = StateTranscribing
	transcript, err := o.transcribe(ctx, logger, ev.RecordingURL)
	var fetchErr *fetchError
	switch {
	case errors.Is(err, ErrNoSpeechDetected):
		logger.Info().Str("state", string(state)).Msg("transcript empty, ending call")
		return o.terminate(logger, ev.CallID, MsgSilence)
	case errors.As(err, &fetchErr):
		logger.Error().Err(err).Str("state", string(state)).Msg("recording fetch failed")
		return o.terminate(logger, ev.CallID, MsgFetchFailed)
	case err != nil:
		logger.Error().Err(err).Str("state", string(state)).Msg("transcription failed")
		return o.terminate(logger, ev.CallID, MsgBadAudio)
	}
	logger.Info().Str("transcript", transcript).Msg("user utterance")

	state = StateQuerying
	sess := o.deps.Sessions.GetOrCreate(ev.CallID)
	reply, token, err := o.deps.Dialogue.Ask(ctx, transcript, sess.ContinuationToken)
	if err != nil {
		logger.Error().Err(err).Str("state", string(state)).Msg("dialogue backend failed")
		return o.terminate(logger, ev.CallID, MsgDialogueFailed)
	}
	// The new token replaces the old one before anything else can fail.
	o.deps.Sessions.UpdateContinuation(ev.CallID, token)
	logger.Info().Str("continuation", token).Str("reply", reply).Msg("dialogue reply")

	state = StateSynthesizing
	replyAudio, err := o.deps.Synthesizer.Synthesize(ctx, reply)
	if err != nil {
		logger.Error().Err(err).Str("state", string(state)).Msg("synthesis failed")
		return o.terminate(logger, ev.CallID, MsgSynthesisFailed)
	}

	state = StateReplaying
	o.deps.Artifacts.Put(ev.CallID, o.deps.Synthesizer.ContentType(), replyAudio)
	logger.Info().
		Str("state", string(state)).
		Int("audio_bytes", len(replyAudio)).
		Msg("reply ready")

	return []twiml.Directive{
		twiml.Play{URL: o.cfg.AudioBaseURL + "/" + ev.CallID},
		twiml.Pause{Seconds: 1},
		twiml.Speak{Text: o.cfg.RePrompt, Voice: o.cfg.Voice},
		o.recordDirective(),
	}
}

// HandleRecordingStatus inspects out-of-band status callbacks and cleans up
// when the provider signals the call is over. No directives are produced.
func (o *Orchestrator) HandleRecordingStatus(ctx context.Context, ev RecordingStatus) {
	logger := o.logger.With().Str("call_id", ev.CallID).Logger()
	logger.Debug().
		Str("event", ev.Event).
		Str("digits", ev.Digits).
		Int("duration", ev.Duration).
		Msg("recording status")

	if ev.Event == "absent" || ev.Digits == "hangup" {
		logger.Info().Str("event", ev.Event).Msg("provider signaled call end, cleaning up")
		if o.deps.Hangup != nil {
			if err := o.deps.Hangup.HangupCall(ctx, ev.CallID); err != nil {
				logger.Warn().Err(err).Msg("hangup request failed")
			}
		}
		o.cleanup(ev.CallID)
	}
}

// Cleanup releases the call's resources. Safe to call any number of times.
func (o *Orchestrator) Cleanup(callID string) {
	o.cleanup(callID)
}

// fetchError tags a recording-retrieval failure so it maps to its own
// apology. The underlying cause stays reachable through Unwrap.
type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return "fetch recording: " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// transcribe fetches, decodes, normalizes and transcribes one recording.
func (o *Orchestrator) transcribe(ctx context.Context, logger zerolog.Logger, url string) (string, error) {
	data, err := o.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", &fetchError{err: err}
	}

	clip, err := audio.Decode(data)
	if err != nil {
		return "", errors.Wrap(err, "decode recording")
	}

	samples := audio.ToMono(clip.Samples, clip.Channels)
	rate := clip.SampleRate

	if want := o.deps.Transcriber.SampleRate(); want > 0 && rate != want {
		if o.cfg.Resampler != nil {
			samples = o.cfg.Resampler(samples, rate, want)
			rate = want
		} else {
			// Degraded mode: the model still accepts the audio but
			// transcription quality suffers.
			logger.Warn().
				Int("sample_rate", rate).
				Int("required_rate", want).
				Msg("no resampler configured, passing audio through at original rate")
		}
	}

	text, err := o.deps.Transcriber.Transcribe(ctx, samples, rate)
	if err != nil {
		return "", errors.Wrap(err, "transcribe recording")
	}
	if text == "" {
		return "", ErrNoSpeechDetected
	}
	return text, nil
}

// terminate converts a terminal condition into the spoken goodbye and runs
// cleanup. Every path into Terminated goes through here exactly once.
func (o *Orchestrator) terminate(logger zerolog.Logger, callID, message string) []twiml.Directive {
	logger.Info().Str("state", string(StateTerminated)).Msg("call terminated")
	o.cleanup(callID)
	return []twiml.Directive{
		twiml.Speak{Text: message, Voice: o.cfg.Voice},
		twiml.Hangup{},
	}
}

func (o *Orchestrator) cleanup(callID string) {
	o.deps.Artifacts.Delete(callID)
	o.deps.Sessions.Remove(callID)
}

func (o *Orchestrator) recordDirective() twiml.Directive {
	return twiml.Record{
		Action:         o.cfg.RecordingAction,
		StatusCallback: o.cfg.RecordingStatusCallback,
		MaxDuration:    o.cfg.MaxRecordingSeconds,
		SilenceTimeout: o.cfg.SilenceTimeoutSeconds,
	}
}
