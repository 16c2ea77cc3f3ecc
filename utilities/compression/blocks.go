package compression

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/woozymasta/lzo"
	"github.com/woozymasta/lzss"
)

// lzoLevel selects LZO1X-999 at its slowest, best setting. Packing happens
// once; unpacking speed doesn't depend on the level.
const lzoLevel = 9

// maxBlockSize bounds the size prefix of block-coded data, so a corrupted
// prefix can't trigger a huge allocation.
const maxBlockSize = membuffer.RSizeMax

// blockCodec is a compressor that works on whole buffers and needs to know
// the decompressed size up front. Block-coded streams are prefixed with that
// size as a little-endian uint32.
type blockCodec struct {
	encode func(src []byte) ([]byte, error)
	decode func(src []byte, size int) ([]byte, error)
}

var blockCodecs = map[Method]blockCodec{
	MethodLZO: {
		encode: func(src []byte) ([]byte, error) {
			return lzo.Compress(src, &lzo.CompressOptions{Level: lzoLevel})
		},
		decode: func(src []byte, size int) ([]byte, error) {
			return lzo.Decompress(src, lzo.DefaultDecompressOptions(size))
		},
	},
	MethodLZSS: {
		encode: func(src []byte) ([]byte, error) {
			return lzss.Compress(src, lzss.DefaultCompressOptions())
		},
		decode: func(src []byte, size int) ([]byte, error) {
			return lzss.Decompress(src, size, lzss.DefaultOptions())
		},
	},
}

func compressBlock(codec blockCodec, input io.Reader, output io.Writer) (int64, error) {
	src, err := io.ReadAll(io.LimitReader(input, maxBlockSize+1))
	if err != nil {
		return 0, err
	}
	if len(src) > maxBlockSize {
		return 0, rvpack.ErrCantPack.WithMessage(
			fmt.Sprintf("input exceeds %d bytes", maxBlockSize))
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(src)))
	n, err := output.Write(prefix[:])
	if err != nil || len(src) == 0 {
		return int64(n), err
	}

	encoded, err := codec.encode(src)
	if err != nil {
		return int64(n), err
	}
	m, err := output.Write(encoded)
	return int64(n + m), err
}

func decompressBlock(codec blockCodec, input io.Reader, output io.Writer) (int64, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(input, prefix[:]); err != nil {
		return 0, err
	}
	size := binary.LittleEndian.Uint32(prefix[:])
	if size > maxBlockSize {
		return 0, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf("block size %d exceeds %d bytes", size, maxBlockSize))
	}

	src, err := io.ReadAll(input)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		if len(src) != 0 {
			return 0, rvpack.ErrCantUnpack.WithMessage("data after empty block")
		}
		return 0, nil
	}

	decoded, err := codec.decode(src, int(size))
	if err != nil {
		return 0, err
	}
	if len(decoded) != int(size) {
		return 0, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf("block decoded to %d bytes, expected %d", len(decoded), size))
	}
	n, err := output.Write(decoded)
	return int64(n), err
}
