// Package selftest runs the board bring-up sequence: associate with Wi-Fi,
// play a test tone through the amplifier, then report microphone levels
// until stopped. Every failing step is logged with the wiring to check and
// the sequence carries on.
package selftest

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/henrikRod/jarvis-selftest/audio"
)

var ErrShortRead = errors.New("selftest: short microphone read")

// Network associates the board and returns its address.
type Network interface {
	Connect(ctx context.Context) (netip.Addr, error)
}

// Speaker accepts packed 16-bit stereo frames.
type Speaker interface {
	WriteStereo(frames []uint32) (int, error)
	Close() error
}

// Microphone produces interleaved 32-bit stereo words.
type Microphone interface {
	ReadStereo(words []uint32) (int, error)
}

// Config holds the test parameters.
type Config struct {
	ToneFrequency  float32
	ToneDuration   time.Duration
	ToneSampleRate uint32
	ToneAmplitude  float32
	// ToneChunk is the number of frames written per call.
	ToneChunk int

	MicSampleRate uint32
	// MicChunk is the number of 32-bit words read per report.
	MicChunk int
	// MicShift scales raw microphone words to 16 bits.
	MicShift uint
	MicOrder audio.FrameOrder
	// ReportInterval is the pause between level reports.
	ReportInterval time.Duration

	// Wiring hints printed when a peripheral fails to start.
	AmpHint string
	MicHint string
}

// DefaultConfig plays 1kHz for 2s at 44.1kHz and samples the microphone at 16kHz.
func DefaultConfig() Config {
	return Config{
		ToneFrequency:  1000,
		ToneDuration:   2 * time.Second,
		ToneSampleRate: 44100,
		ToneAmplitude:  audio.DefaultAmplitude,
		ToneChunk:      256,
		MicSampleRate:  16000,
		MicChunk:       256,
		MicShift:       audio.DefaultShift,
		MicOrder:       audio.LeftFirst,
		ReportInterval: 200 * time.Millisecond,
		AmpHint:        "check amplifier VIN/GND/DIN/BCLK/LRC",
		MicHint:        "check microphone VDD(3V3)/GND/BCLK/LRCL/SD",
	}
}

// Runner sequences the test steps. Any of the openers may be nil, in which
// case the step is reported as unavailable.
type Runner struct {
	cfg     Config
	net     Network
	openAmp func() (Speaker, error)
	openMic func() (Microphone, error)
	logger  *slog.Logger

	mic   Microphone
	micOK bool
	words []uint32
	meter audio.Meter
}

func NewRunner(cfg Config, net Network, openAmp func() (Speaker, error), openMic func() (Microphone, error), logger *slog.Logger) *Runner {
	if cfg.MicChunk < 2 {
		cfg.MicChunk = 2
	}
	if cfg.ToneChunk <= 0 {
		cfg.ToneChunk = 256
	}
	r := &Runner{
		cfg:     cfg,
		net:     net,
		openAmp: openAmp,
		openMic: openMic,
		logger:  logger,
		words:   make([]uint32, cfg.MicChunk),
	}
	r.meter.Shift = cfg.MicShift
	return r
}

// Result summarizes the setup steps.
type Result struct {
	Addr netip.Addr
	WiFi error
	// Frames of tone written to the amplifier.
	Frames int
	Amp    error
	Mic    error
}

// Run executes Setup and then reports levels until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.Setup(ctx)
	return r.Loop(ctx)
}

// Setup runs the Wi-Fi, amplifier and microphone start-up steps. Failures
// are logged and returned in Result; none of them stops the sequence.
func (r *Runner) Setup(ctx context.Context) (res Result) {
	r.info("selftest:start")
	res.Addr, res.WiFi = r.ConnectWiFi(ctx)
	res.Frames, res.Amp = r.PlayTone(ctx)
	res.Mic = r.StartMic()
	return res
}

// ConnectWiFi runs the network step.
func (r *Runner) ConnectWiFi(ctx context.Context) (netip.Addr, error) {
	r.info("wifi:connecting")
	if r.net == nil {
		r.logerr("wifi:unavailable")
		return netip.Addr{}, errors.New("selftest: no network")
	}
	addr, err := r.net.Connect(ctx)
	if err != nil {
		// Audio checks do not need the network.
		r.logerr("wifi:failed", slog.String("err", err.Error()))
		return addr, err
	}
	r.info("wifi:connected", slog.String("ip", addr.String()))
	return addr, nil
}

// PlayTone opens the amplifier, plays the configured tone and closes it
// again. It returns the number of frames written.
func (r *Runner) PlayTone(ctx context.Context) (frames int, err error) {
	cfg := r.cfg
	r.info("amp:start",
		slog.Float64("freq", float64(cfg.ToneFrequency)),
		slog.Duration("duration", cfg.ToneDuration),
		slog.Uint64("fs", uint64(cfg.ToneSampleRate)),
	)
	if r.openAmp == nil {
		err = errors.New("selftest: no amplifier")
		r.logerr("amp:init failed", slog.String("err", err.Error()), slog.String("hint", cfg.AmpHint))
		return 0, err
	}
	spk, err := r.openAmp()
	if err != nil {
		r.logerr("amp:init failed", slog.String("err", err.Error()), slog.String("hint", cfg.AmpHint))
		return 0, err
	}
	defer spk.Close()
	tone := audio.NewTone(cfg.ToneFrequency, cfg.ToneSampleRate)
	if cfg.ToneAmplitude != 0 {
		tone.Amplitude = cfg.ToneAmplitude
	}
	total := tone.Samples(cfg.ToneDuration)
	buf := make([]uint32, cfg.ToneChunk)
	for frames < total {
		if ctx.Err() != nil {
			return frames, ctx.Err()
		}
		chunk := buf[:min(len(buf), total-frames)]
		tone.FillStereo(chunk)
		n, err := spk.WriteStereo(chunk)
		frames += n
		if err != nil {
			r.logerr("amp:write failed", slog.Int("frames", frames), slog.String("err", err.Error()))
			return frames, err
		}
	}
	r.info("amp:ok", slog.Int("frames", frames))
	return frames, nil
}

// StartMic opens the microphone. A failure is remembered and reported on
// every subsequent measurement.
func (r *Runner) StartMic() error {
	r.info("mic:start", slog.Uint64("fs", uint64(r.cfg.MicSampleRate)))
	var err error
	if r.openMic == nil {
		err = errors.New("selftest: no microphone")
	} else {
		r.mic, err = r.openMic()
	}
	if err != nil {
		r.mic = nil
		r.logerr("mic:init failed", slog.String("err", err.Error()), slog.String("hint", r.cfg.MicHint))
		return err
	}
	r.micOK = true
	return nil
}

// MeasureOnce reads one chunk of microphone words and reports its levels.
// Reads with fewer than one complete frame return ErrShortRead without a
// report. A done ctx returns its error without reading.
func (r *Runner) MeasureOnce(ctx context.Context) (audio.Levels, error) {
	if err := ctx.Err(); err != nil {
		return audio.Levels{}, err
	}
	if !r.micOK {
		err := errors.New("selftest: microphone not started")
		r.logerr("mic:read failed", slog.String("err", err.Error()))
		return audio.Levels{}, err
	}
	n, err := r.mic.ReadStereo(r.words)
	if err != nil {
		r.logerr("mic:read failed", slog.Int("words", n), slog.String("err", err.Error()))
		return audio.Levels{}, err
	}
	if n < 2 {
		return audio.Levels{}, ErrShortRead
	}
	r.meter.Reset()
	r.meter.AddFrames(r.words[:n], r.cfg.MicOrder)
	lv := r.meter.Levels()
	r.info("mic:levels",
		slog.Float64("rms_l", round(lv.Left.RMS, 1000)),
		slog.Float64("dbfs_l", round(lv.Left.DBFS, 10)),
		slog.Float64("rms_r", round(lv.Right.RMS, 1000)),
		slog.Float64("dbfs_r", round(lv.Right.DBFS, 10)),
	)
	return lv, nil
}

// Loop reports microphone levels every ReportInterval until ctx is done.
func (r *Runner) Loop(ctx context.Context) error {
	for {
		r.MeasureOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.ReportInterval):
		}
	}
}

// round keeps log lines short: 0.0123456 becomes 0.012 with scale 1000.
func round(v float32, scale float32) float64 {
	x := v * scale
	if x < 0 {
		x -= 0.5
	} else {
		x += 0.5
	}
	return float64(int64(x)) / float64(scale)
}

func (r *Runner) info(msg string, attrs ...slog.Attr) {
	r.logattrs(slog.LevelInfo, msg, attrs...)
}

func (r *Runner) logerr(msg string, attrs ...slog.Attr) {
	r.logattrs(slog.LevelError, msg, attrs...)
}

func (r *Runner) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if r.logger != nil {
		r.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
