package filter

import "encoding/binary"

// RISC-V base opcodes the AUIPC filter cares about.
const (
	opAUIPC = 0x17
	opLoad  = 0x03
	opJALR  = 0x67
	opADDI  = 0x13
	// opStore would be a fourth consumer, but its immediate is split across
	// two fields and isn't supported.
	opStore = 0x23
)

// parityMarker is XORed into the stored address. Filtered pairs close to the
// start of the buffer have differing top two bits in their big-endian address
// field.
const parityMarker = 1 << 30

func opcode(word uint32) uint32 {
	return word & 0x7f
}

func rd(word uint32) uint32 {
	return (word >> 7) & 0x1f
}

func func3(word uint32) uint32 {
	return (word >> 12) & 7
}

func rs1(word uint32) uint32 {
	return (word >> 15) & 0x1f
}

// instructionLength returns the encoded length of the instruction starting
// with `word`: 2, 4 or 6 bytes. Longer encodings aren't supported and are
// reported as 6 bytes.
func instructionLength(word uint32) int {
	length := 2
	if word&3 == 3 {
		length += 2
		if (word>>2)&3 == 3 {
			length += 2
		}
	}
	return length
}

// isConsumer reports whether word2 uses the register written by an AUIPC with
// destination rAUI, in a form whose 12-bit immediate sits in bits 20..31.
func isConsumer(word2, rAUI uint32) bool {
	if rs1(word2) != rAUI {
		return false
	}
	switch opcode(word2) {
	case opLoad:
		return true
	case opJALR, opADDI:
		return func3(word2) == 0
	default:
		return false
	}
}

// inRange reports whether a value's top two bits are equal, i.e. as a signed
// 32-bit value it lies in [-1 GiB, +1 GiB).
func inRange(addr uint32) bool {
	return (addr>>31)&1 == (addr>>30)&1
}

// pair is an AUIPC instruction and the instruction following it, in the
// unfiltered layout.
type pair struct {
	word1 uint32
	word2 uint32
}

func loadPair(b []byte) pair {
	return pair{
		word1: binary.LittleEndian.Uint32(b[0:4]),
		word2: binary.LittleEndian.Uint32(b[4:8]),
	}
}

func (p pair) store(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], p.word1)
	binary.LittleEndian.PutUint32(b[4:8], p.word2)
}

// displacement returns the offset of the pair's target from the AUIPC itself.
func (p pair) displacement() uint32 {
	high := p.word1 &^ 0xfff
	low := uint32(int32(p.word2) >> 20)
	return high + low
}

// hoisted returns the absolute address the pair computes when the AUIPC is at
// buffer offset ic.
func (p pair) hoisted(ic uint32) uint32 {
	return p.displacement() + ic
}

// accepted reports whether the pair is one the filter knows how to rewrite:
// an AUIPC followed by a supported consumer of its result, with a
// displacement under 1 GiB in magnitude. The check is made before hoisting,
// so it doesn't depend on where the pair sits in the buffer.
func (p pair) accepted() bool {
	return opcode(p.word1) == opAUIPC &&
		isConsumer(p.word2, rd(p.word1)) &&
		inRange(p.displacement())
}

// encode writes the filtered layout of the pair into b[0:8]:
//
//	byte 0      address bit 0 in bit 7, AUIPC opcode in bits 0..6
//	bytes 1..4  big-endian address with the parity marker applied
//	bytes 4..7  little-endian word2 rotated left 12 bits, rd of the AUIPC in
//	            bits 7..11 and address bits 1..7 in bits 0..6
//
// Byte 4 is shared: its low 7 bits hold address bits 1..7, which is why the
// big-endian store comes first.
func (p pair) encode(b []byte, ic uint32) {
	addr := p.hoisted(ic)
	rAUI := rd(p.word1)

	b[0] = byte((addr&1)<<7 | opAUIPC)
	binary.BigEndian.PutUint32(b[1:5], addr^parityMarker)
	binary.LittleEndian.PutUint32(b[4:8], p.word2<<12|rAUI<<7|(addr>>1)&0x7f)
}

// decode is the exact inverse of encode. It accepts any 8 bytes whose first
// byte carries the AUIPC opcode.
func decode(b []byte, ic uint32) pair {
	filtered1 := binary.LittleEndian.Uint32(b[0:4])
	filtered2 := binary.LittleEndian.Uint32(b[4:8])
	rAUI := rd(filtered2)

	addr := binary.BigEndian.Uint32(b[1:5]) ^ parityMarker
	addr = (addr &^ 0xff) | (filtered2&0x7f)<<1 | (filtered1>>7)&1
	addr -= ic
	// The low 12 bits are sign-extended when added to the high part, so a
	// negative low part borrowed one from the high part. Give it back.
	addr += (addr & 0x800) << 1

	return pair{
		word1: (addr &^ 0xfff) | rAUI<<7 | opAUIPC,
		word2: addr<<20 | filtered2>>12,
	}
}
