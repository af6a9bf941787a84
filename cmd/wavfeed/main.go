// wavfeed runs the pipeline over a WAV recording instead of live
// capture, with mock providers, for tuning segmentation without a
// microphone or models.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"interpreter-verify-service/internal/app"
	"interpreter-verify-service/internal/audio"
	"interpreter-verify-service/internal/config"
	"interpreter-verify-service/internal/lexicon"
	"interpreter-verify-service/internal/matcher"
	"interpreter-verify-service/internal/pipeline"
	"interpreter-verify-service/internal/sink"
	transcribemock "interpreter-verify-service/internal/transcribe/mock"
	translatemock "interpreter-verify-service/internal/translate/mock"
)

const wavHeaderSize = 44

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	realtime := flag.Bool("realtime", false, "Pace frames at capture speed instead of replaying as fast as possible")
	frameDur := flag.Duration("frame", 30*time.Millisecond, "Frame duration")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	f.Close()

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	log.Printf("WAV file: channels=%d sampleRate=%d bitsPerSample=%d",
		numChannels, sampleRate, bitsPerSample)

	cfg := config.Load()
	a := app.New(cfg)
	a.Start()
	defer a.Shutdown()

	if err := run(cfg, *audioFile, *frameDur, *realtime); err != nil {
		a.Logger.Fatal().Err(err).Msg("Replay failed")
	}
}

func run(cfg *config.Config, path string, frameDur time.Duration, realtime bool) error {
	lex, err := lexicon.Embedded()
	if cfg.Lexicon.Path != "" {
		lex, err = lexicon.Load(cfg.Lexicon.Path)
	}
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}
	m := matcher.New(lexicon.NewStore(lex), matcher.DefaultConfig())

	src, err := audio.NewWAVSource(path, frameDur, realtime)
	if err != nil {
		return err
	}
	defer src.Close()

	sc := pipeline.DefaultSessionConfig()
	sc.Segmenter.SilenceThresholdDB = cfg.Segmenter.SilenceThresholdDB

	session := pipeline.NewSession(sc, src, transcribemock.New(), translatemock.New(), m, sink.NewConsole())
	if err := session.Run(context.Background()); err != nil {
		return err
	}

	stats := session.Stats()
	log.Printf("Replay done: frames=%d utterances=%d delivered=%d droppedShort=%d",
		stats.Segmenter.FramesProcessed, stats.Segmenter.Emitted,
		stats.Delivered, stats.Segmenter.DroppedShort)
	return nil
}
