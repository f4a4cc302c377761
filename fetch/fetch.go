// Package fetch retrieves finished call recordings from the telephony
// provider's media store. The store is eventually consistent, so a fresh
// recording may 404 for a few seconds after the callback fires; Fetch
// tolerates that with a bounded fixed-delay retry.
package fetch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agentplexus/voiceloop"
)

// ErrRecordingUnavailable is returned when every fetch attempt failed.
// It is fatal to the current turn; callers terminate the call rather than
// retry at a higher layer.
var ErrRecordingUnavailable = errors.New("fetch: recording not available after retries")

// Downloader performs a single authenticated media download attempt.
type Downloader interface {
	DownloadRecording(ctx context.Context, url string) ([]byte, error)
}

// Fetcher retries recording downloads with a fixed inter-attempt delay.
// Any transport error or non-success status counts as a failed attempt;
// content is never inspected here.
type Fetcher struct {
	downloader Downloader
	attempts   int
	delay      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithAttempts sets the maximum number of download attempts.
func WithAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithDelay sets the fixed delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.delay = d
		}
	}
}

// WithSleep replaces the inter-attempt sleep, letting tests run the retry
// loop without real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) {
		f.sleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher with 5 attempts and a 2 second delay by default.
func New(downloader Downloader, opts ...Option) *Fetcher {
	f := &Fetcher{
		downloader: downloader,
		attempts:   voiceloop.DefaultFetchAttempts,
		delay:      voiceloop.DefaultFetchDelaySeconds * time.Second,
		sleep:      sleepContext,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the recording at url, retrying up to the configured
// attempt ceiling. It returns on the first success; exhaustion yields
// ErrRecordingUnavailable wrapping the last attempt's error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		data, err := f.downloader.DownloadRecording(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		f.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", f.attempts).
			Str("url", url).
			Msg("recording not ready")

		if attempt == f.attempts {
			break
		}
		if err := f.sleep(ctx, f.delay); err != nil {
			return nil, errors.Wrap(err, "fetch: interrupted between attempts")
		}
	}
	return nil, errors.Wrapf(ErrRecordingUnavailable, "after %d attempts: %v", f.attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
