package protocol

import "time"

// IdleReset is how long a partial frame may wait for its next byte.
const IdleReset = 500 * time.Millisecond

// Assembler cuts a byte stream into candidate frames. A frame starts at 0x32.
// NASA frames carry their length in bytes 1-2; non-NASA frames are a fixed
// 14 bytes ending in 0x34 with a valid xor checksum. In auto mode a buffer
// that forms a valid non-NASA frame at byte 14 wins, otherwise the NASA
// length applies. NASA frames are not validated here.
type Assembler struct {
	variant  Variant
	buf      []byte
	expected int
	last     time.Time
}

// NewAssembler creates an assembler for the given variant.
func NewAssembler(v Variant) *Assembler {
	return &Assembler{variant: v}
}

// Feed appends bytes received at now and returns any completed frames.
func (a *Assembler) Feed(data []byte, now time.Time) [][]byte {
	if len(a.buf) > 0 && now.Sub(a.last) > IdleReset {
		a.reset()
	}
	a.last = now

	var frames [][]byte
	for _, b := range data {
		if len(a.buf) == 0 && b != startByte {
			continue
		}
		a.buf = append(a.buf, b)

		if len(a.buf) == 3 {
			a.expected = a.frameLength()
			if a.expected == 0 && a.variant == VariantNASA {
				a.reset()
				continue
			}
		}

		if len(a.buf) == nonNasaSize && a.variant != VariantNASA {
			if isNonNasaFrame(a.buf) {
				frames = append(frames, a.take())
				continue
			}
			if a.variant == VariantNonNASA || a.expected == 0 {
				a.reset()
				continue
			}
		}

		if a.expected > 0 && len(a.buf) == a.expected {
			if a.buf[len(a.buf)-1] == endByte {
				frames = append(frames, a.take())
				continue
			}
			a.reset()
		}
	}
	return frames
}

func isNonNasaFrame(buf []byte) bool {
	return buf[nonNasaSize-1] == endByte && buf[12] == nonNasaChecksum(buf)
}

func (a *Assembler) frameLength() int {
	if a.variant == VariantNonNASA {
		return nonNasaSize
	}
	total := (int(a.buf[1])<<8 | int(a.buf[2])) + 2
	if total >= nasaMinSize && total <= nasaMaxSize {
		return total
	}
	return 0
}

func (a *Assembler) take() []byte {
	frame := make([]byte, len(a.buf))
	copy(frame, a.buf)
	a.reset()
	return frame
}

func (a *Assembler) reset() {
	a.buf = a.buf[:0]
	a.expected = 0
}

// Pending reports how many bytes of a partial frame are buffered.
func (a *Assembler) Pending() int {
	return len(a.buf)
}
