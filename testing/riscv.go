package testing

import "encoding/binary"

// RISC-V register numbers used by the fixtures.
const (
	RegRA = 1
	RegT1 = 6
	RegA0 = 10
	RegA1 = 11
	RegA5 = 15
)

// RISC-V base opcodes.
const (
	OpLoad  = 0x03
	OpImm   = 0x13
	OpAUIPC = 0x17
	OpStore = 0x23
	OpJALR  = 0x67
)

// Nop is `addi x0, x0, 0`.
const Nop = 0x00000013

// CNop is the compressed `c.nop`.
const CNop = 0x0001

// EncodeAUIPC encodes `auipc rd, imm20`. Only the low 20 bits of imm20 are used.
func EncodeAUIPC(rd, imm20 uint32) uint32 {
	return (imm20&0xfffff)<<12 | (rd&0x1f)<<7 | OpAUIPC
}

// EncodeIType encodes an I-type instruction with a 12-bit signed immediate.
func EncodeIType(opcode, rd, func3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | (rs1&0x1f)<<15 | (func3&7)<<12 | (rd&0x1f)<<7 | opcode&0x7f
}

// EncodeADDI encodes `addi rd, rs1, imm`.
func EncodeADDI(rd, rs1 uint32, imm int32) uint32 {
	return EncodeIType(OpImm, rd, 0, rs1, imm)
}

// EncodeLD encodes `ld rd, imm(rs1)`.
func EncodeLD(rd, rs1 uint32, imm int32) uint32 {
	return EncodeIType(OpLoad, rd, 3, rs1, imm)
}

// EncodeJALR encodes `jalr rd, imm(rs1)`.
func EncodeJALR(rd, rs1 uint32, imm int32) uint32 {
	return EncodeIType(OpJALR, rd, 0, rs1, imm)
}

// EncodeSD encodes `sd rs2, imm(rs1)`. The filter doesn't support stores.
func EncodeSD(rs2, rs1 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 | 3<<12 | (u&0x1f)<<7 | OpStore
}

// SplitDisplacement splits a 32-bit displacement into the 20-bit AUIPC
// immediate and the sign-extended 12-bit immediate of the consumer, so that
// hi<<12 + lo == displacement.
func SplitDisplacement(displacement int32) (hi uint32, lo int32) {
	lo = int32(uint32(displacement)<<20) >> 20
	hi = (uint32(displacement) - uint32(lo)) >> 12
	return hi, lo
}

// ConsumerFunc encodes an instruction reading `rs1` with immediate `imm`.
type ConsumerFunc func(rs1 uint32, imm int32) uint32

// AddiConsumer returns `addi rs1, rs1, imm`.
func AddiConsumer(rs1 uint32, imm int32) uint32 {
	return EncodeADDI(rs1, rs1, imm)
}

// LoadConsumer returns `ld a5, imm(rs1)`.
func LoadConsumer(rs1 uint32, imm int32) uint32 {
	return EncodeLD(RegA5, rs1, imm)
}

// JumpConsumer returns `jalr ra, imm(rs1)`.
func JumpConsumer(rs1 uint32, imm int32) uint32 {
	return EncodeJALR(RegRA, rs1, imm)
}

// AUIPCPair encodes an AUIPC into `reg` followed by `consumer`, together
// computing pc + displacement.
func AUIPCPair(reg uint32, displacement int32, consumer ConsumerFunc) (uint32, uint32) {
	hi, lo := SplitDisplacement(displacement)
	return EncodeAUIPC(reg, hi), consumer(reg, lo)
}

// Words encodes 32-bit instructions in little-endian order.
func Words(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// Halves encodes 16-bit compressed instructions in little-endian order.
func Halves(halves ...uint16) []byte {
	out := make([]byte, 2*len(halves))
	for i, h := range halves {
		binary.LittleEndian.PutUint16(out[2*i:], h)
	}
	return out
}

// Nops returns `count` full-size nops.
func Nops(count int) []byte {
	words := make([]uint32, count)
	for i := range words {
		words[i] = Nop
	}
	return Words(words...)
}
