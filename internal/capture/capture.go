// Package capture decodes a logic analyzer recording of the microphone I2S
// bus and measures the level the board should have reported.
//
// The recording is three Saleae binary digital exports (BCLK, LRCLK and SD).
// The SPI analyzer does the bit clocking: LRCLK low selects the left slot
// the same way an active-low chip select frames an SPI transaction.
package capture

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"

	"github.com/henrikRod/jarvis-selftest/audio"
	"github.com/henrikRod/jarvis-selftest/internal/config"
)

// Report is the result of analyzing a capture.
type Report struct {
	// Slots is the number of complete left slots decoded.
	Slots int
	// Partial counts transactions shorter than a 32-bit slot.
	Partial int
	// Start and End of the decoded slots in seconds from capture start.
	Start, End float64
	// Peak is the largest absolute 16-bit sample.
	Peak  int16
	Level audio.Level
}

// Analyze opens the capture files named in cfg and meters the left channel.
func Analyze(cfg config.CaptureConfig) (Report, error) {
	bclk, err := opendigital(cfg.BCLK)
	if err != nil {
		return Report{}, err
	}
	lrclk, err := opendigital(cfg.LRCLK)
	if err != nil {
		return Report{}, err
	}
	data, err := opendigital(cfg.Data)
	if err != nil {
		return Report{}, err
	}
	spi := analyzers.SPI{}
	txs, _ := spi.Scan(bclk, lrclk, data, data)
	if len(txs) == 0 {
		return Report{}, fmt.Errorf("no I2S slots found in %s", cfg.Data)
	}
	slots := make([]slot, len(txs))
	for i, tx := range txs {
		slots[i] = slot{sdo: tx.SDO, start: tx.StartTime()}
	}
	// The analyzer carries the bits of a slot cut by the capture start
	// over into the next one.
	midSlot := lrclk.Header.InitialState == 0
	return analyze(slots, cfg.Shift, midSlot), nil
}

// slot is the data clocked in during one low LRCLK period.
type slot struct {
	sdo   []byte
	start float64
}

// analyze meters decoded left slots. With midSlot set the capture started
// inside a left slot and the first slot is discarded as partial.
func analyze(slots []slot, shift uint, midSlot bool) Report {
	if shift == 0 {
		shift = audio.DefaultShift
	}
	var (
		r     Report
		meter = audio.Meter{Shift: shift}
	)
	if midSlot && len(slots) > 0 {
		slots = slots[1:]
		r.Partial++
	}
	for _, sl := range slots {
		word, ok := DecodeSlot(sl.sdo)
		if !ok {
			r.Partial++
			continue
		}
		if r.Slots == 0 {
			r.Start = sl.start
		}
		r.End = sl.start
		r.Slots++
		s := audio.Sample16(word, shift)
		meter.Add(audio.Left, s)
		if a := abs16(s); a > r.Peak {
			r.Peak = a
		}
	}
	r.Level = meter.Levels().Left
	return r
}

// DecodeSlot converts the bytes clocked in while LRCLK was low into the left
// sample word. The first bit belongs to the previous slot because of the I2S
// one-bit delay, so it is shifted out and the LSB, clocked after LRCLK rose,
// reads as zero.
func DecodeSlot(sdo []byte) (int32, bool) {
	if len(sdo) < 4 {
		return 0, false
	}
	raw := binary.BigEndian.Uint32(sdo)
	return int32(raw << 1), true
}

func abs16(s int16) int16 {
	if s < 0 {
		if s == -32768 {
			return 32767
		}
		return -s
	}
	return s
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	df, err := saleae.ReadDigitalFile(fp)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return df, nil
}
