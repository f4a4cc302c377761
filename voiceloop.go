// Package voiceloop implements a turn-based voice/chat call orchestrator
// bridging Twilio webhooks with speech-to-text, a conversational-AI backend
// and text-to-speech.
//
// A call flows through one loop per turn: Twilio records the caller, posts a
// recording callback, the orchestrator fetches and transcribes the audio,
// asks the dialogue backend (threading prior turns via a continuation
// token), synthesizes the answer and plays it back before re-arming the
// recorder. Every termination path releases the call's session and its
// synthesized-audio artifact exactly once.
//
// Packages:
//   - session: per-call conversation state
//   - fetch: recording retrieval with bounded retry
//   - audio: WAV/MP3 decoding, mono fold, resampling
//   - stt: speech-to-text providers
//   - dialogue: conversational-AI client
//   - tts: text-to-speech providers
//   - audiostore: per-call synthesized-audio artifacts
//   - twiml: provider directives and their XML rendering
//   - call: the per-call state machine
//   - server: the webhook HTTP layer
//
// # Environment Variables
//
//	TWILIO_ACCOUNT_SID  - Twilio Account SID
//	TWILIO_AUTH_TOKEN   - Twilio Auth Token
//	OPENAI_API_KEY      - dialogue backend API key
//	ELEVENLABS_API_KEY  - voice synthesis API key
package voiceloop

// Version is the orchestrator version.
const Version = "0.1.0"

// Twilio API constants.
const (
	// DefaultAPIBaseURL is the Twilio REST API base URL.
	DefaultAPIBaseURL = "https://api.twilio.com/2010-04-01"
)

// Retry and capture defaults, overridable via configuration.
const (
	// DefaultFetchAttempts bounds recording retrieval against the
	// eventually-consistent recording store.
	DefaultFetchAttempts = 5

	// DefaultFetchDelaySeconds is the fixed delay between fetch attempts.
	DefaultFetchDelaySeconds = 2

	// DefaultMaxRecordingSeconds is the provider-enforced capture ceiling.
	DefaultMaxRecordingSeconds = 30

	// DefaultSilenceTimeoutSeconds stops capture after this much silence.
	DefaultSilenceTimeoutSeconds = 5
)

// Audio constants.
const (
	// WhisperSampleRate is the sample rate expected by Whisper-family
	// transcription models.
	WhisperSampleRate = 16000
)
