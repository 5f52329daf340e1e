//go:build rp2040 || rp2350

package i2s

import (
	"context"
	"log/slog"
	"machine"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// Pins is the audio wiring. LRCLK must be the pin following BCLK.
type Pins struct {
	BCLK machine.Pin
	// DOUT feeds the amplifier.
	DOUT machine.Pin
	// DIN is the microphone data line.
	DIN machine.Pin
}

// LRCLK returns the word select pin implied by BCLK.
func (p Pins) LRCLK() machine.Pin { return p.BCLK + 1 }

type TxConfig struct {
	Pins       Pins
	SampleRate uint32
	// Block is the PIO block to claim a state machine on. Defaults to PIO1
	// since PIO0 runs the CYW43439 bus.
	Block  *pio.PIO
	Logger *slog.Logger
}

// Transmitter plays 16-bit stereo frames as I2S master.
type Transmitter struct {
	sm     pio.StateMachine
	dev    *piolib.I2S
	logger *slog.Logger
	closed bool
}

func NewTransmitter(cfg TxConfig) (*Transmitter, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultTxSampleRate
	}
	if !validSampleRate(cfg.SampleRate) {
		return nil, ErrBadSampleRate
	}
	block := cfg.Block
	if block == nil {
		block = pio.PIO1
	}
	// piolib's SetSampleFrequency assumes 32 cycles per frame; its program
	// takes 64, so the divider is set here.
	whole, frac, err := pio.ClkDivFromFrequency(txPIOFrequency(cfg.SampleRate), machine.CPUFrequency())
	if err != nil {
		return nil, err
	}
	sm, err := block.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	dev, err := piolib.NewI2S(sm, cfg.Pins.DOUT, cfg.Pins.BCLK)
	if err != nil {
		sm.Unclaim()
		return nil, err
	}
	sm.SetClkDiv(whole, frac)
	logattrs(cfg.Logger, slog.LevelDebug, "i2s:tx-start",
		slog.Uint64("fs", uint64(cfg.SampleRate)),
		slog.Uint64("bclk", uint64(cfg.Pins.BCLK)),
		slog.Uint64("dout", uint64(cfg.Pins.DOUT)),
	)
	return &Transmitter{sm: sm, dev: dev, logger: cfg.Logger}, nil
}

// WriteStereo blocks until all frames have been queued on the state machine.
func (tx *Transmitter) WriteStereo(frames []uint32) (int, error) {
	if tx.closed {
		return 0, ErrClosed
	}
	return tx.dev.WriteStereo(frames)
}

// Close stops the state machine so the clock pins can be handed to the receiver.
func (tx *Transmitter) Close() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	tx.sm.SetEnabled(false)
	tx.sm.Unclaim()
	logattrs(tx.logger, slog.LevelDebug, "i2s:tx-stop")
	return nil
}

type RxConfig struct {
	Pins       Pins
	SampleRate uint32
	Block      *pio.PIO
	Logger     *slog.Logger
}

// Receiver captures 32-bit stereo slots as I2S master. The bus is clocked
// from NewReceiver until Close so the microphone stays powered; words
// arriving while nobody reads are dropped.
type Receiver struct {
	sm     pio.StateMachine
	smcfg  pio.StateMachineConfig
	entry  uint8
	fs     uint32
	logger *slog.Logger
	closed bool
}

func NewReceiver(cfg RxConfig) (*Receiver, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultRxSampleRate
	}
	if !validSampleRate(cfg.SampleRate) {
		return nil, ErrBadSampleRate
	}
	block := cfg.Block
	if block == nil {
		block = pio.PIO1
	}
	whole, frac, err := pio.ClkDivFromFrequency(rxPIOFrequency(cfg.SampleRate), machine.CPUFrequency())
	if err != nil {
		return nil, err
	}
	sm, err := block.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	offset, err := block.AddProgram(rxProgram[:], rxOrigin)
	if err != nil {
		sm.Unclaim()
		return nil, err
	}
	bclk, din := cfg.Pins.BCLK, cfg.Pins.DIN
	pinCfg := machine.PinConfig{Mode: block.PinMode()}
	bclk.Configure(pinCfg)
	cfg.Pins.LRCLK().Configure(pinCfg)
	din.Configure(pinCfg)

	smcfg := pio.DefaultStateMachineConfig()
	smcfg.SetWrap(offset+rxWrapTarget, offset+rxWrap)
	smcfg.SetSidesetParams(sideBits, false, false)
	smcfg.SetSidesetPins(bclk)
	smcfg.SetInPins(din)
	// MSB first, the program pushes each 32-bit slot itself.
	smcfg.SetInShift(false, false, 32)
	smcfg.SetFIFOJoin(pio.FifoJoinRx)
	smcfg.SetClkDivIntFrac(whole, frac)

	sm.SetPindirsConsecutive(bclk, 2, true)
	sm.SetPindirsConsecutive(din, 1, false)
	sm.Init(offset+rxEntry, smcfg)
	sm.SetEnabled(true)
	logattrs(cfg.Logger, slog.LevelDebug, "i2s:rx-start",
		slog.Uint64("fs", uint64(cfg.SampleRate)),
		slog.Uint64("bclk", uint64(bclk)),
		slog.Uint64("din", uint64(din)),
	)
	return &Receiver{
		sm:     sm,
		smcfg:  smcfg,
		entry:  offset + rxEntry,
		fs:     cfg.SampleRate,
		logger: cfg.Logger,
	}, nil
}

// ReadStereo fills words with interleaved left/right slots captured after
// the call. It returns ErrTimeout with a partial count if the FIFO stops
// filling.
func (rx *Receiver) ReadStereo(words []uint32) (int, error) {
	if rx.closed {
		return 0, ErrClosed
	}
	rx.restart()
	deadline := time.Now().Add(readTimeout(len(words)+rxSkipWords, rx.fs))
	for i := 0; i < rxSkipWords; i++ {
		if _, ok := rx.pop(deadline); !ok {
			return 0, ErrTimeout
		}
	}
	for i := range words {
		w, ok := rx.pop(deadline)
		if !ok {
			return i, ErrTimeout
		}
		words[i] = w
	}
	return len(words), nil
}

// restart drops stale words and realigns the program on a frame boundary.
// The clock pauses for a few microseconds.
func (rx *Receiver) restart() {
	rx.sm.SetEnabled(false)
	rx.sm.ClearFIFOs()
	rx.sm.Init(rx.entry, rx.smcfg)
	rx.sm.SetEnabled(true)
}

// pop spins without yielding: the FIFO holds 8 words (250us at 16kHz)
// and an overflow mid-chunk would swap the channels.
func (rx *Receiver) pop(deadline time.Time) (uint32, bool) {
	for rx.sm.IsRxFIFOEmpty() {
		if time.Now().After(deadline) {
			return 0, false
		}
	}
	return rx.sm.RxGet(), true
}

func (rx *Receiver) Close() error {
	if rx.closed {
		return nil
	}
	rx.closed = true
	rx.sm.SetEnabled(false)
	rx.sm.ClearFIFOs()
	rx.sm.Unclaim()
	return nil
}

func logattrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
