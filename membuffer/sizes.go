package membuffer

import (
	"fmt"

	"github.com/dargueta/rvpack"
)

// RSizeMax is the largest size, in bytes, of any buffer or size computation.
// 768 MiB leaves room for the compression overhead of the largest input we
// accept (see SizeForCompression).
const RSizeMax = 768 * 1024 * 1024

// MemSize computes elementSize*n + extra1 + extra2. Every operand and the
// result must be at most RSizeMax, which also keeps the arithmetic from
// overflowing.
func MemSize(elementSize, n, extra1, extra2 uint64) (uint64, error) {
	if elementSize == 0 {
		return 0, rvpack.ErrInternal.WithMessage("mem_size: element size is 0")
	}
	if elementSize > RSizeMax {
		return 0, rvpack.ErrCantPack.WithMessage("mem_size 1; take care")
	}
	if n > RSizeMax {
		return 0, rvpack.ErrCantPack.WithMessage("mem_size 2; take care")
	}
	if extra1 > RSizeMax {
		return 0, rvpack.ErrCantPack.WithMessage("mem_size 3; take care")
	}
	if extra2 > RSizeMax {
		return 0, rvpack.ErrCantPack.WithMessage("mem_size 4; take care")
	}
	bytes := elementSize*n + extra1 + extra2
	if bytes > RSizeMax {
		return 0, rvpack.ErrCantPack.WithMessage(
			fmt.Sprintf("mem_size 5: %d bytes exceeds %d", bytes, RSizeMax))
	}
	return bytes, nil
}

// SizeForCompression returns the size of an output buffer large enough to hold
// the compressed form of uncompressedSize bytes, plus extra bytes for the
// caller.
//
// It takes the larger of two worst-case bounds: all-literal output (one bit of
// overhead per byte plus 256), and the zstd block bound. Another 256 bytes are
// added for rounding and alignment.
func SizeForCompression(uncompressedSize, extra uint32) (uint32, error) {
	if uncompressedSize == 0 {
		return 0, rvpack.ErrCantPack.WithMessage("invalid uncompressed_size")
	}

	z := uint64(uncompressedSize)
	bytes, err := MemSize(1, z, 0, 0)
	if err != nil {
		return 0, err
	}

	bytes = max(bytes, z+z/8+256)

	var smallInputSlack uint64
	if z < 128<<10 {
		smallInputSlack = ((128 << 10) - z) >> 11
	}
	bytes = max(bytes, z+(z>>8)+smallInputSlack)

	bytes, err = MemSize(1, bytes, uint64(extra), 256)
	if err != nil {
		return 0, err
	}
	return uint32(bytes), nil
}

// SizeForDecompression returns uncompressedSize + extra, after checking that
// it's a valid buffer size.
func SizeForDecompression(uncompressedSize, extra uint32) (uint32, error) {
	if uncompressedSize == 0 {
		return 0, rvpack.ErrCantPack.WithMessage("invalid uncompressed_size")
	}
	bytes, err := MemSize(1, uint64(uncompressedSize), uint64(extra), 0)
	if err != nil {
		return 0, err
	}
	return uint32(bytes), nil
}
