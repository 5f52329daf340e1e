package audio

import (
	"time"

	"github.com/chewxy/math32"
)

const (
	twoPi = 2 * math32.Pi
	// fullScale16 is the largest positive 16-bit PCM value.
	fullScale16 = 32767
)

// DefaultAmplitude leaves 6dB of headroom so small amplifiers do not clip.
const DefaultAmplitude = 0.5

// Tone generates a sine wave sample by sample. The phase is kept between
// calls so consecutive buffers join without discontinuities.
type Tone struct {
	Frequency  float32
	SampleRate uint32
	// Amplitude is the peak as a fraction of full scale. Zero selects DefaultAmplitude.
	Amplitude float32
	phase     float32
}

// NewTone returns a tone generator at freq Hz sampled at sampleRate Hz.
func NewTone(freq float32, sampleRate uint32) *Tone {
	return &Tone{Frequency: freq, SampleRate: sampleRate, Amplitude: DefaultAmplitude}
}

// Samples returns the number of samples needed to play the tone for d.
func (t *Tone) Samples(d time.Duration) int {
	if d <= 0 || t.SampleRate == 0 {
		return 0
	}
	return int(int64(d) * int64(t.SampleRate) / int64(time.Second))
}

// Reset rewinds the generator to zero phase.
func (t *Tone) Reset() { t.phase = 0 }

// Fill16 writes the next len(dst) mono samples into dst.
func (t *Tone) Fill16(dst []int16) {
	for i := range dst {
		dst[i] = t.next()
	}
}

// FillStereo writes the next len(dst) samples into dst as packed stereo
// words with the same sample on both channels. The transmitter shifts the
// high half out first, in the left slot.
func (t *Tone) FillStereo(dst []uint32) {
	for i := range dst {
		s := uint32(uint16(t.next()))
		dst[i] = s | s<<16
	}
}

func (t *Tone) next() int16 {
	amp := t.Amplitude
	if amp == 0 {
		amp = DefaultAmplitude
	}
	s := amp * math32.Sin(t.phase)
	if t.SampleRate != 0 {
		t.phase += twoPi * t.Frequency / float32(t.SampleRate)
		for t.phase >= twoPi {
			t.phase -= twoPi
		}
	}
	return clamp16(int32(s * fullScale16))
}
