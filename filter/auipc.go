package filter

import "github.com/dargueta/rvpack"

// AUIPC filters RISC-V code by rewriting AUIPC instructions and the
// instruction consuming their result into a single absolute address.
//
// AUIPC computes an address relative to its own position, so two references
// to the same symbol from different places are encoded differently. Adding the
// pair's offset in the buffer makes the address absolute, and storing it
// big-endian puts the slowly-changing high bits first. Both make the code
// more repetitive and so more compressible.
//
// Layouts, most significant bit first. Unfiltered:
//
//	word1  imm[31:12]                           | rAUI     | AUIPC
//	word2  imm[11:0]    | rs1 | func3 | rd      | opcode
//
// Filtered, where addr is the hoisted address with its top-bit parity
// inverted:
//
//	word1  addr[15:8] | addr[23:16] | addr[31:24]          | a0 | AUIPC
//	word2  rs1 | func3 | rd | opcode | rAUI | addr[7:1]
//
// A pair is rewritten only if the consumer reads the AUIPC's register in a
// supported form (load, JALR or ADDI) and its displacement from the AUIPC is
// under 1 GiB in magnitude. Everything else is left alone, with one
// exception: an original pair whose bytes are exactly what filtering some
// other acceptable pair would produce gets swapped with that pair. Without the swap, unfiltering
// couldn't tell the two apart. Because of this, filtering and unfiltering are
// the same permutation of each 8-byte pair and the round trip is exact for
// every input.
type AUIPC struct{}

// NewAUIPC returns the AUIPC filter.
func NewAUIPC() *AUIPC {
	return &AUIPC{}
}

func (f *AUIPC) ID() rvpack.FilterID {
	return rvpack.FilterAUIPC
}

func (f *AUIPC) Name() string {
	return "auipc"
}

// filterable reports whether the original pair at b[0:8] is one the forward
// pass rewrites. A pair that itself looks like the encoding of an acceptable
// pair is not, since that would make the two indistinguishable after
// filtering.
func filterable(b []byte, ic uint32) bool {
	return loadPair(b).accepted() && !decode(b, ic).accepted()
}

// looksFiltered reports whether b[0:8] is the filtered form of a filterable
// pair.
func looksFiltered(b []byte, ic uint32) bool {
	var original [8]byte
	decode(b, ic).store(original[:])
	return filterable(original[:], ic)
}

// Run performs one pass over ctx.Buf in ctx.Mode, filling in the counters.
// The last 8 bytes of the buffer are never examined.
func (f *AUIPC) Run(ctx *rvpack.FilterContext) {
	b := ctx.Buf
	size := len(b)

	calls := 0
	noncalls := 0
	lastcall := 0

	var length int
	for ic := 0; ic < size-8; ic += length {
		word1 := uint32(b[ic]) | uint32(b[ic+1])<<8 | uint32(b[ic+2])<<16 | uint32(b[ic+3])<<24
		length = instructionLength(word1)
		if opcode(word1) != opAUIPC {
			continue
		}
		// Whatever happens to this pair, the next instruction is after it.
		length = 8

		window := b[ic : ic+8 : ic+8]
		pos := uint32(ic)

		var call bool
		switch ctx.Mode {
		case rvpack.ModeScan:
			call = filterable(window, pos)

		case rvpack.ModeFilter:
			if filterable(window, pos) {
				call = true
				loadPair(window).encode(window, pos)
			} else if looksFiltered(window, pos) {
				decode(window, pos).store(window)
			}

		case rvpack.ModeUnfilter:
			if looksFiltered(window, pos) {
				call = true
				decode(window, pos).store(window)
			} else if filterable(window, pos) {
				loadPair(window).encode(window, pos)
			}
		}

		if call {
			calls++
			lastcall = ic
			if ctx.Matches != nil {
				ctx.Matches.Set(ic/2, true)
			}
		} else {
			noncalls++
		}
	}

	ctx.Calls = calls
	ctx.Noncalls = noncalls
	ctx.Lastcall = lastcall
}
