package pack

import (
	"fmt"
	"io"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/filter"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/dargueta/rvpack/utilities/compression"
	"github.com/zeebo/blake3"
)

// Unpack restores the code stored by Pack. The result is checked against the
// size, filter call count and checksum recorded in the header. `opts` may be
// nil; only its Allocator and Logger are used.
func Unpack(packed []byte, opts *Options) ([]byte, error) {
	opts = withDefaults(opts)

	header, err := ParseHeader(packed)
	if err != nil {
		return nil, err
	}
	payload := packed[HeaderSize:]
	if uint64(len(payload)) != uint64(header.CompressedSize) {
		return nil, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf(
				"payload is %d bytes, header says %d", len(payload), header.CompressedSize))
	}

	f, err := filter.Lookup(header.Filter)
	if err != nil {
		return nil, rvpack.ErrCantUnpack.Wrap(err)
	}

	staged := opts.Allocator.New()
	defer staged.Free()
	if err = staged.AllocForDecompression(header.UncompressedSize, 0); err != nil {
		return nil, rvpack.ErrCantUnpack.Wrap(err)
	}

	n, err := compression.DecompressToBuffer(header.Method, payload, staged)
	if err != nil {
		return nil, err
	}
	if n != int(header.UncompressedSize) {
		return nil, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf("decompressed %d bytes, header says %d", n, header.UncompressedSize))
	}

	ctx, err := filter.Apply(f, staged, rvpack.ModeUnfilter, false)
	if err != nil {
		return nil, err
	}
	if uint32(ctx.Calls) != header.Calls {
		return nil, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf("%s restored %d pairs, header says %d", f.Name(), ctx.Calls, header.Calls))
	}

	if blake3.Sum256(staged.Bytes()) != header.Checksum {
		return nil, rvpack.ErrCantUnpack.WithMessage("checksum mismatch")
	}

	opts.Logger.Printf(
		"unpacked %d -> %d bytes with %s/%s", len(packed), n, f.Name(), header.Method)

	code := make([]byte, n)
	copy(code, staged.Bytes())
	return code, nil
}

// UnpackFromReader reads all of `r` and unpacks it.
func UnpackFromReader(r io.Reader, opts *Options) ([]byte, error) {
	packed, err := io.ReadAll(io.LimitReader(r, membuffer.RSizeMax+HeaderSize+1))
	if err != nil {
		return nil, err
	}
	return Unpack(packed, opts)
}
