// Command voiceloop runs the webhook server for the voice/chat call
// orchestrator.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentplexus/voiceloop"
	"github.com/agentplexus/voiceloop/audio"
	"github.com/agentplexus/voiceloop/audiostore"
	"github.com/agentplexus/voiceloop/call"
	"github.com/agentplexus/voiceloop/config"
	"github.com/agentplexus/voiceloop/dialogue"
	"github.com/agentplexus/voiceloop/fetch"
	"github.com/agentplexus/voiceloop/internal/twilioclient"
	"github.com/agentplexus/voiceloop/server"
	"github.com/agentplexus/voiceloop/session"
	"github.com/agentplexus/voiceloop/stt"
	"github.com/agentplexus/voiceloop/tts"
)

var (
	flagConfig   string
	flagAddr     string
	flagLogLevel string
	flagLogJSON  bool
)

func main() {
	root := &cobra.Command{
		Use:     "voiceloop",
		Short:   "Turn-based voice/chat call orchestrator for Twilio webhooks",
		Version: voiceloop.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit JSON logs instead of console output")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("voiceloop exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	setupLogging()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")

	twilioClient, err := twilioclient.New(&twilioclient.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
	})
	if err != nil {
		return err
	}

	fetcher := fetch.New(twilioClient,
		fetch.WithAttempts(cfg.Recording.FetchAttempts),
		fetch.WithDelay(cfg.FetchDelay()),
		fetch.WithLogger(log.With().Str("component", "fetch").Logger()),
	)

	transcriber, err := stt.New(
		stt.WithAPIKey(cfg.Transcribe.APIKey),
		stt.WithBaseURL(orDefault(cfg.Transcribe.BaseURL, "https://api.openai.com/v1")),
		stt.WithModel(cfg.Transcribe.Model),
		stt.WithLanguage(cfg.Transcribe.Language),
	)
	if err != nil {
		return err
	}

	dialogueClient, err := dialogue.New(
		dialogue.WithAPIKey(cfg.Dialogue.APIKey),
		dialogue.WithBaseURL(orDefault(cfg.Dialogue.BaseURL, "https://api.openai.com/v1")),
		dialogue.WithModel(cfg.Dialogue.Model),
		dialogue.WithInstructions(cfg.Dialogue.Instructions),
	)
	if err != nil {
		return err
	}

	synthesizer, err := tts.New(
		tts.WithAPIKey(cfg.Synthesis.APIKey),
		tts.WithVoice(cfg.Synthesis.VoiceID),
		tts.WithModel(cfg.Synthesis.Model),
	)
	if err != nil {
		return err
	}

	sessions := session.NewStore()
	artifacts := audiostore.NewStore()

	orch, err := call.New(call.Deps{
		Sessions:    sessions,
		Artifacts:   artifacts,
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Dialogue:    dialogueClient,
		Synthesizer: synthesizer,
		Hangup:      twilioClient,
		Logger:      log.With().Str("component", "call").Logger(),
	}, call.Config{
		RecordingAction:         baseURL + "/recording",
		RecordingStatusCallback: baseURL + "/recording-status",
		AudioBaseURL:            baseURL + "/audio",
		Greeting:                cfg.Prompts.Greeting,
		RePrompt:                cfg.Prompts.RePrompt,
		Voice:                   cfg.Prompts.Voice,
		MaxRecordingSeconds:     cfg.Recording.MaxSeconds,
		SilenceTimeoutSeconds:   cfg.Recording.SilenceTimeoutSeconds,
		Resampler:               audio.ResampleLinear,
	})
	if err != nil {
		return err
	}

	chat := server.NewChat(server.ChatDeps{
		Sessions:  sessions,
		Dialogue:  dialogueClient,
		STT:       transcriber,
		TTS:       synthesizer,
		Resampler: audio.ResampleLinear,
		Logger:    log.With().Str("component", "chat").Logger(),
	})

	srv := server.New(server.Deps{
		Orchestrator: orch,
		Artifacts:    artifacts,
		Recordings:   twilioClient,
		Chat:         chat,
		Logger:       log.With().Str("component", "server").Logger(),
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("base_url", baseURL).Msg("webhook server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "webhook server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogging() {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !flagLogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
