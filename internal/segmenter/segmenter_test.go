package segmenter

import (
	"encoding/binary"
	"testing"
	"time"

	"interpreter-verify-service/internal/audio"
)

const frameDur = 30 * time.Millisecond

func testConfig() Config {
	return Config{
		SilenceThresholdDB: -40.0,
		Hangover:           60 * time.Millisecond,
		MinUtterance:       50 * time.Millisecond,
		MaxUtterance:       30 * time.Second,
		PreRoll:            60 * time.Millisecond,
		QueueSize:          4,
	}
}

// pcmFrame builds a 30ms 16kHz mono frame of constant amplitude.
func pcmFrame(captured time.Time, amplitude int16) audio.Frame {
	samples := 480
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(amplitude))
	}
	return audio.Frame{PCM: pcm, SampleRate: 16000, Captured: captured}
}

func speechFrame(captured time.Time) audio.Frame {
	return pcmFrame(captured, 3277) // ~-20 dBFS
}

func silenceFrame(captured time.Time) audio.Frame {
	return pcmFrame(captured, 0)
}

func collect(s *Segmenter) []Utterance {
	var out []Utterance
	for {
		select {
		case u := <-s.Utterances():
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestFrameEnergyDB(t *testing.T) {
	base := time.Now()
	if got := frameEnergyDB(silenceFrame(base).PCM); got != -120.0 {
		t.Errorf("silence energy = %.1f, want -120.0", got)
	}
	if got := frameEnergyDB(speechFrame(base).PCM); got < -21 || got > -19 {
		t.Errorf("speech energy = %.1f, want ~-20", got)
	}
	if got := frameEnergyDB(nil); got != -120.0 {
		t.Errorf("empty energy = %.1f, want -120.0", got)
	}
}

func TestSegmenterEmitsAfterHangover(t *testing.T) {
	s := New(testConfig())
	base := time.Unix(0, 0)

	i := 0
	for ; i < 5; i++ {
		s.Process(speechFrame(base.Add(time.Duration(i) * frameDur)))
	}
	for ; i < 8; i++ {
		s.Process(silenceFrame(base.Add(time.Duration(i) * frameDur)))
	}

	got := collect(s)
	if len(got) != 1 {
		t.Fatalf("emitted %d utterances, want 1", len(got))
	}
	u := got[0]
	if u.ID != 1 {
		t.Errorf("ID = %d, want 1", u.ID)
	}
	if !u.Start.Equal(base) {
		t.Errorf("Start = %v, want %v", u.Start, base)
	}
	if want := 150 * time.Millisecond; u.Duration() != want {
		t.Errorf("Duration = %v, want %v", u.Duration(), want)
	}
	// 5 speech frames plus the 2 silence frames consumed by the hangover.
	if want := 7 * 960; len(u.PCM) != want {
		t.Errorf("len(PCM) = %d, want %d", len(u.PCM), want)
	}
	if u.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", u.SampleRate)
	}
	if st := s.Stats(); st.Emitted != 1 || st.FramesProcessed != 8 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSegmenterDropsShortUtterance(t *testing.T) {
	s := New(testConfig())
	base := time.Unix(0, 0)

	s.Process(speechFrame(base))
	s.Process(silenceFrame(base.Add(frameDur)))
	s.Process(silenceFrame(base.Add(2 * frameDur)))

	if got := collect(s); len(got) != 0 {
		t.Fatalf("emitted %d utterances, want 0", len(got))
	}
	if st := s.Stats(); st.DroppedShort != 1 || st.Emitted != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSegmenterPreRoll(t *testing.T) {
	s := New(testConfig())
	base := time.Unix(0, 0)

	for i := 0; i < 3; i++ {
		s.Process(silenceFrame(base.Add(time.Duration(i) * frameDur)))
	}
	for i := 3; i < 8; i++ {
		s.Process(speechFrame(base.Add(time.Duration(i) * frameDur)))
	}
	s.Flush()

	got := collect(s)
	if len(got) != 1 {
		t.Fatalf("emitted %d utterances, want 1", len(got))
	}
	u := got[0]
	// The pre-roll window keeps the last two silence frames, so the
	// utterance starts at the second silence frame.
	if want := base.Add(frameDur); !u.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", u.Start, want)
	}
	if want := 7 * 960; len(u.PCM) != want {
		t.Errorf("len(PCM) = %d, want %d", len(u.PCM), want)
	}
}

func TestSegmenterForcedSplit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtterance = 120 * time.Millisecond
	cfg.PreRoll = 0
	s := New(cfg)
	base := time.Unix(0, 0)

	i := 0
	for ; i < 7; i++ {
		s.Process(speechFrame(base.Add(time.Duration(i) * frameDur)))
	}
	for ; i < 9; i++ {
		s.Process(silenceFrame(base.Add(time.Duration(i) * frameDur)))
	}

	got := collect(s)
	if len(got) != 2 {
		t.Fatalf("emitted %d utterances, want 2", len(got))
	}
	first, second := got[0], got[1]
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("IDs = %d, %d; want 1, 2", first.ID, second.ID)
	}
	if want := 120 * time.Millisecond; first.Duration() != want {
		t.Errorf("first Duration = %v, want %v", first.Duration(), want)
	}
	// The continuation picks up where the forced split ended.
	if !second.Start.Equal(first.End) {
		t.Errorf("second Start = %v, want %v", second.Start, first.End)
	}
}

func TestSegmenterOverrun(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	s := New(cfg)
	base := time.Unix(0, 0)

	emit := func(off time.Duration) {
		for i := 0; i < 3; i++ {
			s.Process(speechFrame(base.Add(off + time.Duration(i)*frameDur)))
		}
		s.Flush()
	}
	emit(0)
	emit(time.Second)

	if got := collect(s); len(got) != 1 {
		t.Fatalf("emitted %d utterances, want 1", len(got))
	}
	if st := s.Stats(); st.Overruns != 1 {
		t.Errorf("Overruns = %d, want 1", st.Overruns)
	}
}

func TestSegmenterFlushAndClose(t *testing.T) {
	s := New(testConfig())
	base := time.Unix(0, 0)

	for i := 0; i < 4; i++ {
		s.Process(speechFrame(base.Add(time.Duration(i) * frameDur)))
	}
	s.Flush()
	s.Close()

	var got []Utterance
	for u := range s.Utterances() {
		got = append(got, u)
	}
	if len(got) != 1 {
		t.Fatalf("emitted %d utterances, want 1", len(got))
	}
	if want := 120 * time.Millisecond; got[0].Duration() != want {
		t.Errorf("Duration = %v, want %v", got[0].Duration(), want)
	}
}
