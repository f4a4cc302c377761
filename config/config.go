// Package config loads orchestrator configuration from an optional YAML
// file, with environment variables supplying or overriding credentials.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/agentplexus/voiceloop"
)

// Config is the full orchestrator configuration.
type Config struct {
	// Addr is the listen address of the webhook server.
	Addr string `yaml:"addr"`

	// PublicBaseURL is the externally reachable base URL Twilio calls
	// back on, e.g. "https://bot.example.com".
	PublicBaseURL string `yaml:"public_base_url"`

	Twilio     Twilio     `yaml:"twilio"`
	Dialogue   Dialogue   `yaml:"dialogue"`
	Transcribe Transcribe `yaml:"transcribe"`
	Synthesis  Synthesis  `yaml:"synthesis"`
	Recording  Recording  `yaml:"recording"`
	Prompts    Prompts    `yaml:"prompts"`
}

// Twilio holds provider credentials. Values left empty fall back to the
// TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN environment variables.
type Twilio struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
}

// Dialogue configures the conversational-AI backend.
type Dialogue struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Instructions string `yaml:"instructions"`
}

// Transcribe configures speech-to-text.
type Transcribe struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// Synthesis configures text-to-speech.
type Synthesis struct {
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	Model   string `yaml:"model"`
}

// Recording tunes capture and retrieval.
type Recording struct {
	// FetchAttempts bounds retrieval retries; FetchDelaySeconds is the
	// fixed delay between attempts.
	FetchAttempts     int `yaml:"fetch_attempts"`
	FetchDelaySeconds int `yaml:"fetch_delay_seconds"`

	// MaxSeconds caps one capture; SilenceTimeoutSeconds stops it early.
	MaxSeconds            int `yaml:"max_seconds"`
	SilenceTimeoutSeconds int `yaml:"silence_timeout_seconds"`
}

// Prompts are the spoken texts.
type Prompts struct {
	Greeting string `yaml:"greeting"`
	RePrompt string `yaml:"re_prompt"`
	Voice    string `yaml:"voice"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:          ":5000",
		PublicBaseURL: "http://localhost:5000",
		Dialogue: Dialogue{
			Model: "gpt-4",
		},
		Transcribe: Transcribe{
			Model: "whisper-1",
		},
		Recording: Recording{
			FetchAttempts:         voiceloop.DefaultFetchAttempts,
			FetchDelaySeconds:     voiceloop.DefaultFetchDelaySeconds,
			MaxSeconds:            voiceloop.DefaultMaxRecordingSeconds,
			SilenceTimeoutSeconds: voiceloop.DefaultSilenceTimeoutSeconds,
		},
	}
}

// Load reads path (when non-empty) over the defaults and then applies
// environment overrides. A missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: parse %s", path)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv fills credentials from the environment when the file left them
// empty. Environment values never override explicit file values.
func (c *Config) applyEnv() {
	fallback(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	fallback(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	fallback(&c.Dialogue.APIKey, "OPENAI_API_KEY")
	fallback(&c.Transcribe.APIKey, "OPENAI_API_KEY")
	fallback(&c.Synthesis.APIKey, "ELEVENLABS_API_KEY")
	fallback(&c.Synthesis.VoiceID, "ELEVENLABS_VOICE_ID")
}

// FetchDelay returns the inter-attempt delay as a duration.
func (c Config) FetchDelay() time.Duration {
	return time.Duration(c.Recording.FetchDelaySeconds) * time.Second
}

func fallback(dst *string, envKey string) {
	if *dst == "" {
		*dst = os.Getenv(envKey)
	}
}
