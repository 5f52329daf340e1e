package selftest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/henrikRod/jarvis-selftest/audio"
)

type fakeNet struct {
	addr netip.Addr
	err  error
}

func (f fakeNet) Connect(context.Context) (netip.Addr, error) { return f.addr, f.err }

type fakeSpeaker struct {
	frames []uint32
	calls  int
	failAt int
	closed bool
}

func (f *fakeSpeaker) WriteStereo(frames []uint32) (int, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return 0, errors.New("dma stall")
	}
	f.frames = append(f.frames, frames...)
	return len(frames), nil
}

func (f *fakeSpeaker) Close() error { f.closed = true; return nil }

type fakeMic struct {
	word  uint32
	short bool
	err   error
	reads int
}

func (f *fakeMic) ReadStereo(words []uint32) (int, error) {
	f.reads++
	if f.err != nil {
		return 0, f.err
	}
	if f.short {
		return 1, nil
	}
	for i := range words {
		words[i] = f.word
	}
	return len(words), nil
}

func newTestRunner(t *testing.T, cfg Config, net Network, spk *fakeSpeaker, mic *fakeMic) (*Runner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var openAmp func() (Speaker, error)
	if spk != nil {
		openAmp = func() (Speaker, error) { return spk, nil }
	}
	var openMic func() (Microphone, error)
	if mic != nil {
		openMic = func() (Microphone, error) { return mic, nil }
	}
	return NewRunner(cfg, net, openAmp, openMic, logger), &buf
}

func shortConfig() Config {
	cfg := DefaultConfig()
	cfg.ToneDuration = 10 * time.Millisecond
	cfg.ReportInterval = time.Millisecond
	return cfg
}

func TestSetupHappyPath(t *testing.T) {
	spk := &fakeSpeaker{}
	mic := &fakeMic{word: 1000 << 14}
	addr := netip.MustParseAddr("192.168.1.42")
	r, logs := newTestRunner(t, shortConfig(), fakeNet{addr: addr}, spk, mic)
	res := r.Setup(context.Background())
	if res.WiFi != nil || res.Amp != nil || res.Mic != nil {
		t.Fatal("unexpected setup errors", res)
	}
	if res.Addr != addr {
		t.Error("bad address", res.Addr)
	}
	// 10ms at 44.1kHz.
	if res.Frames != 441 || len(spk.frames) != 441 {
		t.Error("expected 441 frames, got", res.Frames, len(spk.frames))
	}
	if spk.calls != 2 {
		t.Error("expected a full and a partial chunk, got calls", spk.calls)
	}
	if !spk.closed {
		t.Error("speaker must be closed after the tone")
	}
	out := logs.String()
	for _, want := range []string{"msg=selftest:start", "msg=wifi:connected ip=192.168.1.42", "msg=amp:ok frames=441", "msg=mic:start"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in logs:\n%s", want, out)
		}
	}
}

func TestSetupContinuesAfterFailures(t *testing.T) {
	r, logs := newTestRunner(t, shortConfig(), fakeNet{err: errors.New("join timed out")}, nil, nil)
	res := r.Setup(context.Background())
	if res.WiFi == nil || res.Amp == nil || res.Mic == nil {
		t.Fatal("expected every step to fail", res)
	}
	out := logs.String()
	if !strings.Contains(out, "msg=wifi:failed") {
		t.Error("wifi failure not logged")
	}
	if !strings.Contains(out, "check amplifier VIN/GND/DIN/BCLK/LRC") {
		t.Error("amp wiring hint not logged")
	}
	if !strings.Contains(out, "check microphone VDD(3V3)/GND/BCLK/LRCL/SD") {
		t.Error("mic wiring hint not logged")
	}
	// Measurements keep reporting the failure.
	if _, err := r.MeasureOnce(context.Background()); err == nil {
		t.Error("expected measurement to fail without a microphone")
	}
	if strings.Count(logs.String(), "msg=\"mic:read failed\"") != 1 {
		t.Error("read failure not logged")
	}
}

func TestPlayToneWriteError(t *testing.T) {
	spk := &fakeSpeaker{failAt: 2}
	r, _ := newTestRunner(t, shortConfig(), nil, spk, nil)
	frames, err := r.PlayTone(context.Background())
	if err == nil {
		t.Fatal("expected write error")
	}
	if frames != 256 {
		t.Error("expected first chunk to be counted, got", frames)
	}
	if !spk.closed {
		t.Error("speaker must be closed on error")
	}
}

func TestMeasureOnce(t *testing.T) {
	mic := &fakeMic{word: 1000 << 14}
	r, logs := newTestRunner(t, shortConfig(), nil, nil, mic)
	if err := r.StartMic(); err != nil {
		t.Fatal(err)
	}
	lv, err := r.MeasureOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := audio.LevelFromRMS(1000.0 / 32768)
	if lv.Left != want || lv.Right != want {
		t.Error("unexpected levels", lv, want)
	}
	if lv.Frames != 128 {
		t.Error("expected 128 frames, got", lv.Frames)
	}
	out := logs.String()
	if !strings.Contains(out, "msg=mic:levels rms_l=0.031 dbfs_l=-30.3 rms_r=0.031 dbfs_r=-30.3") {
		t.Error("unexpected level report:\n", out)
	}
}

func TestMeasureOnceShortAndFailedReads(t *testing.T) {
	mic := &fakeMic{short: true}
	r, logs := newTestRunner(t, shortConfig(), nil, nil, mic)
	r.StartMic()
	if _, err := r.MeasureOnce(context.Background()); !errors.Is(err, ErrShortRead) {
		t.Error("expected short read, got", err)
	}
	if strings.Contains(logs.String(), "mic:levels") {
		t.Error("short reads must not be reported")
	}
	mic.short = false
	mic.err = errors.New("timeout")
	if _, err := r.MeasureOnce(context.Background()); err == nil {
		t.Error("expected read error")
	}
	if !strings.Contains(logs.String(), "msg=\"mic:read failed\"") {
		t.Error("read failure not logged")
	}
}

func TestMeasureOnceCancelled(t *testing.T) {
	mic := &fakeMic{}
	r, logs := newTestRunner(t, shortConfig(), nil, nil, mic)
	r.StartMic()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.MeasureOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Error("expected context.Canceled, got", err)
	}
	if mic.reads != 0 {
		t.Error("microphone read after cancellation")
	}
	if strings.Contains(logs.String(), "mic:read failed") {
		t.Error("cancellation logged as a read failure")
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	mic := &fakeMic{}
	r, logs := newTestRunner(t, shortConfig(), nil, nil, mic)
	r.StartMic()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Loop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected deadline error, got", err)
	}
	if strings.Count(logs.String(), "msg=mic:levels") < 2 {
		t.Error("expected several reports:\n", logs.String())
	}
}

func TestRound(t *testing.T) {
	for _, tc := range []struct {
		v, scale float32
		want     float64
	}{
		{0.0123456, 1000, 0.012},
		{-38.46, 10, -38.5},
		{-120, 10, -120},
		{0, 10, 0},
	} {
		if got := round(tc.v, tc.scale); got != tc.want {
			t.Errorf("round(%v, %v) = %v, want %v", tc.v, tc.scale, got, tc.want)
		}
	}
}
