// Package i2s implements I2S master transmit and receive on the RP2040 PIO
// blocks. Both directions share the bit clock and word select pins, LRCLK
// is always wired to the pin after BCLK, and only one direction runs at a time.
package i2s

import (
	"errors"
	"time"
)

const (
	// DefaultTxSampleRate is the amplifier playback rate.
	DefaultTxSampleRate = 44100
	// DefaultRxSampleRate is the microphone capture rate.
	DefaultRxSampleRate = 16000

	// Receive slots are 32 bits wide, 64 bit clocks per stereo frame.
	rxBitsPerFrame = 64
	// The receive program spends two PIO cycles on each bit clock period.
	rxCyclesPerBit = 2

	// piolib's transmit program clocks two 16-bit slots per frame at two
	// cycles per bit.
	txCyclesPerFrame = 2 * 16 * 2
)

var (
	ErrBadSampleRate = errors.New("i2s: sample rate out of range")
	ErrTimeout       = errors.New("i2s: read timed out")
	ErrClosed        = errors.New("i2s: closed")
)

// StereoWriter is implemented by the transmitter.
type StereoWriter interface {
	// WriteStereo sends packed stereo frames, left channel in the high 16 bits.
	WriteStereo(frames []uint32) (int, error)
}

// StereoReader is implemented by the receiver.
type StereoReader interface {
	// ReadStereo fills words with interleaved 32-bit slots, left first.
	ReadStereo(words []uint32) (int, error)
}

func validSampleRate(fs uint32) bool {
	return fs >= 8000 && fs <= 96000
}

// txPIOFrequency is the state machine clock needed to transmit at fs.
func txPIOFrequency(fs uint32) uint32 {
	return fs * txCyclesPerFrame
}

// rxPIOFrequency is the state machine clock needed to receive at fs.
func rxPIOFrequency(fs uint32) uint32 {
	return fs * rxBitsPerFrame * rxCyclesPerBit
}

// readTimeout is how long a read of n words may take at fs before the
// receiver is considered stalled.
func readTimeout(n int, fs uint32) time.Duration {
	frames := (n + 1) / 2
	expect := time.Duration(frames) * time.Second / time.Duration(fs)
	return 2*expect + 50*time.Millisecond
}
