package audio

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestToneMatchesSine(t *testing.T) {
	const (
		freq = 1000
		sr   = 44100
	)
	tone := NewTone(freq, sr)
	buf := make([]int16, 2*sr/freq*5)
	tone.Fill16(buf)
	for n, got := range buf {
		want := 0.5 * math.Sin(2*math.Pi*freq*float64(n)/sr) * 32767
		if math.Abs(float64(got)-want) > 3 {
			t.Fatalf("sample %d: got %d, want %.1f", n, got, want)
		}
	}
}

func TestToneContinuousAcrossChunks(t *testing.T) {
	whole := NewTone(1000, 44100)
	chunked := NewTone(1000, 44100)
	want := make([]int16, 1000)
	whole.Fill16(want)
	got := make([]int16, 0, len(want))
	chunk := make([]int16, 256)
	for len(got) < len(want) {
		n := min(len(chunk), len(want)-len(got))
		chunked.Fill16(chunk[:n])
		got = append(got, chunk[:n]...)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs: %d != %d", i, got[i], want[i])
		}
	}
}

func TestToneAmplitudeNeverClips(t *testing.T) {
	tone := NewTone(997, 44100)
	tone.Amplitude = 1
	buf := make([]int16, 44100)
	tone.Fill16(buf)
	var peak int16
	for _, s := range buf {
		if s > peak {
			peak = s
		}
	}
	if peak < 32700 {
		t.Error("expected near full scale peak, got", peak)
	}
}

func TestToneFillStereo(t *testing.T) {
	mono := NewTone(1000, 44100)
	stereo := NewTone(1000, 44100)
	m := make([]int16, 64)
	s := make([]uint32, 64)
	mono.Fill16(m)
	stereo.FillStereo(s)
	for i := range m {
		left := int16(uint16(s[i] >> 16))
		right := int16(uint16(s[i]))
		if left != m[i] || right != m[i] {
			t.Fatalf("frame %d: got L=%d R=%d, want %d", i, left, right, m[i])
		}
	}
}

func TestToneSamplesAndReset(t *testing.T) {
	tone := NewTone(1000, 44100)
	if n := tone.Samples(2 * time.Second); n != 88200 {
		t.Error("expected 88200 samples for 2s, got", n)
	}
	if n := tone.Samples(0); n != 0 {
		t.Error("expected no samples for zero duration, got", n)
	}
	first := make([]int16, 10)
	tone.Fill16(first)
	tone.Reset()
	again := make([]int16, 10)
	tone.Fill16(again)
	if first[3] != again[3] || again[0] != 0 {
		t.Error("reset did not rewind phase", first, again)
	}
}

func TestSample16(t *testing.T) {
	for _, tc := range []struct {
		word  int32
		shift uint
		want  int16
	}{
		{0, 14, 0},
		{1 << 14, 14, 1},
		{-1 << 14, 14, -1},
		{-1, 14, -1}, // Arithmetic shift keeps the sign.
		{math.MaxInt32, 14, 32767},
		{math.MinInt32, 14, -32768},
		{0x7fff << 16, 16, 0x7fff},
	} {
		got := Sample16(tc.word, tc.shift)
		if got != tc.want {
			t.Errorf("Sample16(%#x, %d) = %d, want %d", tc.word, tc.shift, got, tc.want)
		}
	}
}

func TestMeterSilence(t *testing.T) {
	var m Meter
	m.AddFrames(make([]uint32, 256), LeftFirst)
	lv := m.Levels()
	if lv.Frames != 128 {
		t.Error("expected 128 frames, got", lv.Frames)
	}
	if lv.Left.RMS != 0 || lv.Left.DBFS != FloorDBFS || lv.Right.DBFS != FloorDBFS {
		t.Error("silence should sit on the floor", lv)
	}
}

func TestMeterFullScaleSquare(t *testing.T) {
	var m Meter
	words := make([]uint32, 64)
	for i := 0; i < len(words); i += 2 {
		v := int32(math.MaxInt32)
		if i%4 == 0 {
			v = math.MinInt32
		}
		words[i] = uint32(v) // Saturated on the first channel.
	}
	m.AddFrames(words, RightFirst)
	lv := m.Levels()
	if lv.Right.DBFS < -0.01 || lv.Right.DBFS > 0.01 {
		t.Error("expected 0dBFS on right channel, got", lv.Right)
	}
	if lv.Left.DBFS != FloorDBFS {
		t.Error("expected silent left channel, got", lv.Left)
	}
}

func TestMeterFrameOrder(t *testing.T) {
	words := []uint32{uint32(1000 << 14), 0, uint32(1000 << 14), 0}
	var lf, rf Meter
	lf.AddFrames(words, LeftFirst)
	rf.AddFrames(words, RightFirst)
	if lf.Levels().Left.RMS == 0 || lf.Levels().Right.RMS != 0 {
		t.Error("left first: even words belong to left", lf.Levels())
	}
	if rf.Levels().Right.RMS == 0 || rf.Levels().Left.RMS != 0 {
		t.Error("right first: even words belong to right", rf.Levels())
	}
}

func TestMeterOddAndShortInput(t *testing.T) {
	var m Meter
	if n := m.AddFrames([]uint32{0xffff_ffff}, LeftFirst); n != 0 {
		t.Error("single word must not form a frame")
	}
	if n := m.AddFrames([]uint32{1, 2, 3}, LeftFirst); n != 1 {
		t.Error("trailing word must be ignored, got frames", n)
	}
	if m.Levels().Frames != 1 {
		t.Error("expected 1 frame total")
	}
	m.Reset()
	if m.Levels().Frames != 0 {
		t.Error("reset did not clear frames")
	}
}

func TestMeterSineLevel(t *testing.T) {
	// A half scale sine has RMS 0.5/sqrt(2), about -9.03dBFS.
	tone := NewTone(1000, 16000)
	samples := make([]int16, 1600)
	tone.Fill16(samples)
	var m Meter
	for _, s := range samples {
		m.Add(Left, s)
	}
	got := m.Levels().Left
	if math.Abs(float64(got.DBFS)+9.03) > 0.1 {
		t.Error("unexpected sine level", got)
	}
}

func TestLevelsString(t *testing.T) {
	lv := Levels{Left: LevelFromRMS(0.5), Right: LevelFromRMS(0)}
	s := lv.String()
	if !strings.HasPrefix(s, "L: RMS=0.500 (-6.0 dBFS)") {
		t.Error("bad left format:", s)
	}
	if !strings.HasSuffix(s, "R: RMS=0.000 (-120.0 dBFS)") {
		t.Error("bad right format:", s)
	}
	if Left.String() != "L" || Right.String() != "R" {
		t.Error("bad channel names")
	}
}
