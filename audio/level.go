package audio

import (
	"strconv"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

const (
	// DefaultShift scales a raw 32-bit microphone word down to the 16-bit
	// range. 24-bit MEMS microphones left-justify their data so a shift of 16
	// would be unity; 14 adds 12dB of gain and still clamps on loud input.
	DefaultShift = 14
	// FloorDBFS is reported for channels at or below RMS 1e-6.
	FloorDBFS = -120
	minRMS    = 1e-6
	// scale16 normalizes a 16-bit RMS value to full scale.
	scale16 = 32768
)

// Channel identifies one side of a stereo stream.
type Channel uint8

const (
	Left Channel = iota
	Right
)

func (c Channel) String() string {
	if c == Right {
		return "R"
	}
	return "L"
}

// FrameOrder is the position of each channel inside an interleaved pair.
type FrameOrder uint8

const (
	// LeftFirst is the layout produced by the PIO receiver: the word sampled
	// while word-select is low arrives first.
	LeftFirst FrameOrder = iota
	// RightFirst is the ESP-IDF RIGHT_LEFT layout where the even word is the right channel.
	RightFirst
)

// Sample16 converts a raw two's complement microphone word to a 16-bit
// sample by arithmetic right shift and saturation.
func Sample16(word int32, shift uint) int16 {
	return clamp16(word >> shift)
}

func clamp16(v int32) int16 {
	return int16(clamp(v, -32768, 32767))
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

// Meter accumulates the energy of a stereo stream. The zero value is ready
// to use with DefaultShift.
type Meter struct {
	// Shift applied to raw words by AddWord and AddFrames. Zero means DefaultShift.
	Shift  uint
	acc    [2]int64
	count  [2]int
	frames int
}

// Reset clears all accumulated samples.
func (m *Meter) Reset() {
	m.acc = [2]int64{}
	m.count = [2]int{}
	m.frames = 0
}

// Add accumulates a single 16-bit sample on channel ch.
func (m *Meter) Add(ch Channel, s int16) {
	m.acc[ch&1] += int64(s) * int64(s)
	m.count[ch&1]++
}

// AddWord accumulates a raw 32-bit microphone word on channel ch.
func (m *Meter) AddWord(ch Channel, word int32) {
	m.Add(ch, Sample16(word, m.shift()))
}

// AddFrames accumulates interleaved stereo words. A trailing word without
// its pair is ignored. It returns the number of frames consumed.
func (m *Meter) AddFrames(words []uint32, order FrameOrder) int {
	first, second := Left, Right
	if order == RightFirst {
		first, second = Right, Left
	}
	n := 0
	for i := 0; i+1 < len(words); i += 2 {
		m.AddWord(first, int32(words[i]))
		m.AddWord(second, int32(words[i+1]))
		n++
	}
	m.frames += n
	return n
}

func (m *Meter) shift() uint {
	if m.Shift == 0 {
		return DefaultShift
	}
	return m.Shift
}

// Levels returns the RMS and dBFS of each channel over everything added since
// the last Reset.
func (m *Meter) Levels() Levels {
	return Levels{
		Left:   m.level(Left),
		Right:  m.level(Right),
		Frames: m.frames,
	}
}

func (m *Meter) level(ch Channel) Level {
	n := m.count[ch]
	if n == 0 {
		return Level{DBFS: FloorDBFS}
	}
	mean := float64(m.acc[ch]) / float64(n)
	return LevelFromRMS(math32.Sqrt(float32(mean)) / scale16)
}

// Level is the loudness of a single channel.
type Level struct {
	// RMS as a fraction of full scale, 0 to 1.
	RMS float32
	// DBFS is 20*log10(RMS), or FloorDBFS for silent channels.
	DBFS float32
}

// LevelFromRMS computes the dBFS of a full-scale normalized RMS value.
func LevelFromRMS(rms float32) Level {
	db := float32(FloorDBFS)
	if rms > minRMS {
		db = 20 * math32.Log10(rms)
	}
	return Level{RMS: rms, DBFS: db}
}

// String formats the level as "RMS=0.123 (-18.2 dBFS)".
func (l Level) String() string {
	return string(l.appendTo(make([]byte, 0, 24)))
}

func (l Level) appendTo(b []byte) []byte {
	b = append(b, "RMS="...)
	b = strconv.AppendFloat(b, float64(l.RMS), 'f', 3, 32)
	b = append(b, " ("...)
	b = strconv.AppendFloat(b, float64(l.DBFS), 'f', 1, 32)
	return append(b, " dBFS)"...)
}

// Levels is a stereo level reading.
type Levels struct {
	Left   Level
	Right  Level
	Frames int
}

// Channel returns the level of ch.
func (l Levels) Channel(ch Channel) Level {
	if ch == Right {
		return l.Right
	}
	return l.Left
}

// String formats both channels as "L: RMS=... (... dBFS) | R: RMS=... (... dBFS)".
func (l Levels) String() string {
	b := make([]byte, 0, 64)
	b = append(b, "L: "...)
	b = l.Left.appendTo(b)
	b = append(b, " | R: "...)
	b = l.Right.appendTo(b)
	return string(b)
}
