package i2s

// PIO instruction encoding for the receive program. Two side-set bits drive
// BCLK (bit 0) and LRCLK (bit 1) and are not optional, leaving three bits
// for delay which the program does not use.
const (
	opJMP  = 0b000 << 13
	opIN   = 0b010 << 13
	opPUSH = 0b100 << 13
	opSET  = 0b111 << 13

	jmpXDec  = 0b010 << 5
	inPins   = 0b000 << 5
	setX     = 0b001 << 5
	sideBits = 2
)

func side(v uint16) uint16 { return (v & (1<<sideBits - 1)) << 11 }

func jmpXDecr(addr uint8, sideset uint16) uint16 {
	return opJMP | jmpXDec | uint16(addr&0x1f) | side(sideset)
}

func inPin(sideset uint16) uint16 { return opIN | inPins | 1 | side(sideset) }

func setXTo(v uint8, sideset uint16) uint16 {
	return opSET | setX | uint16(v&0x1f) | side(sideset)
}

// pushNoBlock drops the ISR instead of stalling when the RX FIFO is full,
// so the bus stays clocked while nobody reads.
func pushNoBlock(sideset uint16) uint16 { return opPUSH | side(sideset) }

// Side-set values, LRCLK in the high bit.
const (
	sLeftLow   = 0b00
	sLeftHigh  = 0b01
	sRightLow  = 0b10
	sRightHigh = 0b11
)

// rxProgram clocks a stereo frame of two 32-bit slots in Philips I2S format
// and shifts the data pin in on each rising BCLK edge. Word select changes
// at the start of the last bit of the previous slot. Each word is pushed on
// the low half of the first bit of the following slot, so the left word
// reaches the FIFO first. Execution starts at rxEntry, which makes the first
// pushed word a partial right slot.
var rxProgram = [...]uint16{
	0: pushNoBlock(sLeftLow), // Right word.
	// Left slot, bits 31 to 2.
	1:  inPin(sLeftHigh),
	2:  jmpXDecr(1, sLeftLow),
	3:  inPin(sLeftHigh),       // Bit 1.
	4:  setXTo(29, sRightLow),  // Word select leads the slot by one bit.
	5:  inPin(sRightHigh),      // Bit 0.
	6:  pushNoBlock(sRightLow), // Left word.
	7:  inPin(sRightHigh),
	8:  jmpXDecr(7, sRightLow),
	9:  inPin(sRightHigh),
	10: setXTo(29, sLeftLow),
	11: inPin(sLeftHigh),
}

const (
	rxOrigin     = -1 // Load anywhere.
	rxWrapTarget = 0
	rxWrap       = uint8(len(rxProgram) - 1)
	rxEntry      = 10
	// Words to discard after starting at rxEntry.
	rxSkipWords = 1
)
