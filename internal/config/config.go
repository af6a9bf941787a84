// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration with defaults suitable for
// a local-only deployment.
type Config struct {
	Service       ServiceConfig
	Audio         AudioConfig
	Segmenter     SegmenterConfig
	Dispatcher    DispatcherConfig
	Sequencer     SequencerConfig
	Lexicon       LexiconConfig
	Matcher       MatcherConfig
	Transcriber   TranscriberConfig
	Translator    TranslatorConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Principal string
}

// AudioConfig configures the capture source.
type AudioConfig struct {
	// Source selects "capture" (microphone) or "wav" (file replay).
	Source        string
	WAVPath       string
	SampleRateHz  int
	FrameDuration time.Duration
	Buffer        int
}

// SegmenterConfig configures voice activity detection.
type SegmenterConfig struct {
	SilenceThresholdDB float64
	Hangover           time.Duration
	MinUtterance       time.Duration
	MaxUtterance       time.Duration
	PreRoll            time.Duration
	QueueSize          int
}

// DispatcherConfig bounds the concurrent processing stage.
type DispatcherConfig struct {
	MaxInFlight int
	MaxQueued   int
}

// SequencerConfig configures ordered delivery.
type SequencerConfig struct {
	HoldTimeout time.Duration
}

// LexiconConfig selects the terminology source.
type LexiconConfig struct {
	// Path to a lexicon JSON file; empty uses the embedded lexicon.
	Path string
}

// MatcherConfig configures fuzzy terminology matching.
type MatcherConfig struct {
	FuzzyThreshold float64
	LengthRatio    float64
	MinFuzzyRunes  int
	MaxNGram       int
}

// TranscriberConfig selects and configures the STT provider.
type TranscriberConfig struct {
	// Provider is "mock", "whisper" or "google".
	Provider       string
	WhisperBaseURL string
	WhisperModel   string
	GoogleLanguage string
	Timeout        time.Duration
}

// TranslatorConfig selects and configures the translation provider.
type TranslatorConfig struct {
	// Provider is "mock" or "ollama".
	Provider      string
	OllamaBaseURL string
	OllamaModel   string
	Timeout       time.Duration
	Audit         bool
	WarmUp        bool
}

// KafkaConfig configures optional event publishing.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicRecords string
	TopicAlerts  string
}

// ObservabilityConfig configures logging and the admin HTTP server.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
	HTTPPort  string
}

// Load reads configuration from the environment, falling back to
// defaults.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-interpreter-verify"),
		},
		Audio: AudioConfig{
			Source:        envOrDefault("AUDIO_SOURCE", "capture"),
			WAVPath:       envOrDefault("AUDIO_WAV_PATH", ""),
			SampleRateHz:  envOrDefaultInt("AUDIO_SAMPLE_RATE_HZ", 16000),
			FrameDuration: envOrDefaultDuration("AUDIO_FRAME_DURATION", 30*time.Millisecond),
			Buffer:        envOrDefaultInt("AUDIO_BUFFER_FRAMES", 64),
		},
		Segmenter: SegmenterConfig{
			SilenceThresholdDB: envOrDefaultFloat("SEGMENT_SILENCE_THRESHOLD_DB", -40.0),
			Hangover:           envOrDefaultDuration("SEGMENT_HANGOVER", 500*time.Millisecond),
			MinUtterance:       envOrDefaultDuration("SEGMENT_MIN_UTTERANCE", 200*time.Millisecond),
			MaxUtterance:       envOrDefaultDuration("SEGMENT_MAX_UTTERANCE", 30*time.Second),
			PreRoll:            envOrDefaultDuration("SEGMENT_PRE_ROLL", 200*time.Millisecond),
			QueueSize:          envOrDefaultInt("SEGMENT_QUEUE_SIZE", 8),
		},
		Dispatcher: DispatcherConfig{
			MaxInFlight: envOrDefaultInt("DISPATCH_MAX_IN_FLIGHT", 4),
			MaxQueued:   envOrDefaultInt("DISPATCH_MAX_QUEUED", 16),
		},
		Sequencer: SequencerConfig{
			HoldTimeout: envOrDefaultDuration("SEQUENCE_HOLD_TIMEOUT", 15*time.Second),
		},
		Lexicon: LexiconConfig{
			Path: envOrDefault("LEXICON_PATH", ""),
		},
		Matcher: MatcherConfig{
			FuzzyThreshold: envOrDefaultFloat("MATCH_FUZZY_THRESHOLD", 0.82),
			LengthRatio:    envOrDefaultFloat("MATCH_LENGTH_RATIO", 0.34),
			MinFuzzyRunes:  envOrDefaultInt("MATCH_MIN_FUZZY_RUNES", 4),
			MaxNGram:       envOrDefaultInt("MATCH_MAX_NGRAM", 3),
		},
		Transcriber: TranscriberConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			WhisperBaseURL: envOrDefault("STT_WHISPER_BASE_URL", "http://127.0.0.1:9000"),
			WhisperModel:   envOrDefault("STT_WHISPER_MODEL", "large-v3"),
			GoogleLanguage: envOrDefault("STT_GOOGLE_LANGUAGE", "ru-RU"),
			Timeout:        envOrDefaultDuration("STT_TIMEOUT", 30*time.Second),
		},
		Translator: TranslatorConfig{
			Provider:      envOrDefault("TRANSLATE_PROVIDER", "mock"),
			OllamaBaseURL: envOrDefault("TRANSLATE_OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   envOrDefault("TRANSLATE_OLLAMA_MODEL", "qwen2.5:7b-instruct-q4_K_M"),
			Timeout:       envOrDefaultDuration("TRANSLATE_TIMEOUT", 30*time.Second),
			Audit:         envOrDefaultBool("TRANSLATE_AUDIT", false),
			WarmUp:        envOrDefaultBool("TRANSLATE_WARM_UP", true),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicRecords: envOrDefault("KAFKA_TOPIC_RECORDS", "interpreter.records"),
			TopicAlerts:  envOrDefault("KAFKA_TOPIC_ALERTS", "interpreter.alerts"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "console"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
