package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interpreter-verify-service/internal/app"
	"interpreter-verify-service/internal/audio"
	"interpreter-verify-service/internal/config"
	"interpreter-verify-service/internal/events"
	"interpreter-verify-service/internal/lexicon"
	"interpreter-verify-service/internal/matcher"
	"interpreter-verify-service/internal/observability"
	"interpreter-verify-service/internal/pipeline"
	"interpreter-verify-service/internal/sink"
	"interpreter-verify-service/internal/transcribe"
	googlestt "interpreter-verify-service/internal/transcribe/google"
	transcribemock "interpreter-verify-service/internal/transcribe/mock"
	"interpreter-verify-service/internal/transcribe/whisper"
	"interpreter-verify-service/internal/translate"
	translatemock "interpreter-verify-service/internal/translate/mock"
	"interpreter-verify-service/internal/translate/ollama"
)

func main() {
	cfg := config.Load()
	a := app.New(cfg)
	a.Start()
	defer a.Shutdown()

	if err := run(a, cfg); err != nil {
		a.Logger.Fatal().Err(err).Msg("Service failed")
	}
}

func run(a *app.Application, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Terminology lexicon, embedded by default.
	lex, err := loadLexicon(cfg.Lexicon)
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}
	store := lexicon.NewStore(lex)
	a.Logger.Info().Int("terms", lex.Len()).Str("version", lex.Version()).Msg("Lexicon loaded")

	mcfg := matcher.DefaultConfig()
	mcfg.FuzzyThreshold = cfg.Matcher.FuzzyThreshold
	mcfg.LengthRatio = cfg.Matcher.LengthRatio
	mcfg.MinFuzzyRunes = cfg.Matcher.MinFuzzyRunes
	mcfg.MaxNGram = cfg.Matcher.MaxNGram
	m := matcher.New(store, mcfg)

	transcriber, err := newTranscriber(ctx, cfg.Transcriber)
	if err != nil {
		return fmt.Errorf("init transcriber %q: %w", cfg.Transcriber.Provider, err)
	}

	translator, err := newTranslator(ctx, cfg.Translator, a)
	if err != nil {
		return fmt.Errorf("init translator %q: %w", cfg.Translator.Provider, err)
	}

	source, err := newSource(cfg.Audio)
	if err != nil {
		return fmt.Errorf("init audio source %q: %w", cfg.Audio.Source, err)
	}
	defer source.Close()

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicRecords: cfg.Kafka.TopicRecords,
		TopicAlerts:  cfg.Kafka.TopicAlerts,
		Principal:    cfg.Service.Principal,
	})

	out := sink.Multi{sink.NewConsole(), sink.NewPublishing(publisher)}
	defer out.Close()

	session := pipeline.NewSession(sessionConfig(cfg), source, transcriber, translator, m, out)

	admin := observability.NewServer(":"+cfg.Observability.HTTPPort, func() any {
		return session.Stats()
	})
	admin.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		admin.Shutdown(shutdownCtx)
	}()

	err = session.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	var lost *audio.DeviceLostError
	if errors.As(err, &lost) {
		a.Logger.Error().Err(err).Msg("Audio device lost, session ended")
		return err
	}
	return err
}

func sessionConfig(cfg *config.Config) pipeline.SessionConfig {
	sc := pipeline.DefaultSessionConfig()
	sc.Segmenter.SilenceThresholdDB = cfg.Segmenter.SilenceThresholdDB
	sc.Segmenter.Hangover = cfg.Segmenter.Hangover
	sc.Segmenter.MinUtterance = cfg.Segmenter.MinUtterance
	sc.Segmenter.MaxUtterance = cfg.Segmenter.MaxUtterance
	sc.Segmenter.PreRoll = cfg.Segmenter.PreRoll
	sc.Segmenter.QueueSize = cfg.Segmenter.QueueSize
	sc.Dispatcher.MaxInFlight = cfg.Dispatcher.MaxInFlight
	sc.Dispatcher.MaxQueued = cfg.Dispatcher.MaxQueued
	sc.HoldTimeout = cfg.Sequencer.HoldTimeout
	return sc
}

func loadLexicon(cfg config.LexiconConfig) (*lexicon.Lexicon, error) {
	if cfg.Path == "" {
		return lexicon.Embedded()
	}
	return lexicon.Load(cfg.Path)
}

func newTranscriber(ctx context.Context, cfg config.TranscriberConfig) (transcribe.Transcriber, error) {
	switch cfg.Provider {
	case "whisper":
		return whisper.New(whisper.Config{
			BaseURL: cfg.WhisperBaseURL,
			Model:   cfg.WhisperModel,
			Timeout: cfg.Timeout,
		}), nil
	case "google":
		gcfg := googlestt.DefaultConfig()
		gcfg.LanguageCode = cfg.GoogleLanguage
		gcfg.Timeout = cfg.Timeout
		return googlestt.New(ctx, gcfg)
	case "mock":
		return transcribemock.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider")
	}
}

func newTranslator(ctx context.Context, cfg config.TranslatorConfig, a *app.Application) (translate.Translator, error) {
	switch cfg.Provider {
	case "ollama":
		t := ollama.New(ollama.Config{
			BaseURL: cfg.OllamaBaseURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.Timeout,
			Audit:   cfg.Audit,
		})
		if err := t.VerifyConnection(ctx); err != nil {
			return nil, err
		}
		if cfg.WarmUp {
			if err := t.WarmUp(ctx); err != nil {
				a.Logger.Warn().Err(err).Msg("Translator warm-up failed, continuing")
			}
		}
		return t, nil
	case "mock":
		return translatemock.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider")
	}
}

func newSource(cfg config.AudioConfig) (audio.Source, error) {
	switch cfg.Source {
	case "wav":
		if cfg.WAVPath == "" {
			return nil, fmt.Errorf("AUDIO_WAV_PATH not set")
		}
		return audio.NewWAVSource(cfg.WAVPath, cfg.FrameDuration, true)
	case "capture":
		return audio.NewCaptureSource(audio.CaptureConfig{
			SampleRate:    cfg.SampleRateHz,
			FrameDuration: cfg.FrameDuration,
			Buffer:        cfg.Buffer,
		}), nil
	default:
		return nil, fmt.Errorf("unknown source")
	}
}
