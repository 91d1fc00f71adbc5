package main

import (
	"fmt"
	"time"

	"github.com/PageSage/pagesage/internal/assistant"
	"github.com/PageSage/pagesage/internal/capture"
	"github.com/PageSage/pagesage/internal/config"
	"github.com/PageSage/pagesage/internal/diag"
	"github.com/PageSage/pagesage/internal/executor"
	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/internal/metrics"
	"github.com/PageSage/pagesage/internal/provider"
	"github.com/PageSage/pagesage/internal/ratelimit"
	"github.com/PageSage/pagesage/internal/session"
	"github.com/PageSage/pagesage/internal/store"
	"github.com/PageSage/pagesage/internal/usage"
	"github.com/PageSage/pagesage/pkg/types"
)

// Service assembles the full query pipeline from configuration. Every
// command that answers queries goes through one of these.
type Service struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.SQLiteStore
	meter   *usage.Meter
	assist  *assistant.Assistant
	whisper *provider.WhisperClient
}

// newService wires the pipeline: store, meter, providers, executor,
// routing engine, then the assistant on top.
func newService(cfg *config.Config, dbPath string) (*Service, error) {
	log := logger.New("pagesage", cfg.Log.Level)

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	meter := usage.NewMeter(cfg.Usage.Quota, st, log)

	sessions := session.NewStore(cfg.Session.MaxHistory, log)
	if err := sessions.SetPersister(st); err != nil {
		log.Warn("could not restore sessions: %v", err)
	}

	recorder := diag.NewRecorder(st)
	collector := metrics.NewCollector()

	analytical := provider.NewAnthropicClient(
		cfg.Providers.Anthropic.APIKey,
		cfg.Providers.Anthropic.AuthToken,
		cfg.Providers.Anthropic.Model,
		cfg.Providers.Anthropic.MaxTokens,
		log,
	)
	realtime := provider.NewPerplexityClient(
		cfg.Providers.Perplexity.APIKey,
		cfg.Providers.Perplexity.Model,
		cfg.Providers.Perplexity.MaxTokens,
		log,
	)

	exec := executor.New(log,
		executor.WithMaxRetries(cfg.Executor.MaxRetries),
		executor.WithTimeout(time.Duration(cfg.Executor.TimeoutSeconds)*time.Second),
		executor.WithFailureHook(func(providerName string, attempt int, pageURL string, perr *types.ProviderError) {
			recorder.RecordError(diag.ErrorRecord{
				Provider: providerName,
				Attempt:  attempt,
				Kind:     perr.Kind,
				Message:  perr.Message,
				URL:      pageURL,
			})
		}),
	)

	assist := assistant.New(assistant.Options{
		Executor:   exec,
		Analytical: analytical,
		Realtime:   realtime,
		Meter:      meter,
		Sessions:   sessions,
		Limiter:    ratelimit.New(cfg.RateLimit),
		Collector:  collector,
		Recorder:   recorder,
		Log:        log,
	})

	svc := &Service{
		cfg:    cfg,
		log:    log,
		store:  st,
		meter:  meter,
		assist: assist,
	}

	if cfg.Providers.Whisper.Enabled {
		svc.whisper = provider.NewWhisperClient(cfg.Providers.Whisper.APIKey, cfg.Providers.Whisper.Model, log)
	}

	return svc, nil
}

// Close flushes the meter and closes the database.
func (s *Service) Close() error {
	s.meter.Close()
	return s.store.Close()
}

// CapturePage fetches a URL through the headless capturer and returns
// its sanitized page context.
func (s *Service) CapturePage(url string) (*types.PageContext, error) {
	if !s.cfg.Capture.Enabled {
		return nil, fmt.Errorf("page capture disabled: set capture.enabled in the config")
	}

	capturer, err := capture.New(&capture.Config{
		Enabled:        true,
		Headless:       s.cfg.Capture.Headless,
		TimeoutSeconds: s.cfg.Capture.TimeoutSeconds,
		Stealth:        s.cfg.Capture.Stealth,
	}, s.log)
	if err != nil {
		return nil, err
	}
	defer capturer.Close()

	return capturer.Capture(url)
}
