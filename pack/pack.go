// Package pack stores RISC-V code in a compact self-checking format: the code
// is filtered with whichever filter makes it compress best, compressed, and
// prefixed with a Header recording how to undo both steps.
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

// ScanResult records what a read-only pass of one filter found.
type ScanResult struct {
	Filter   rvpack.FilterID `csv:"filter"`
	Calls    int             `csv:"calls"`
	Noncalls int             `csv:"noncalls"`
	Lastcall int             `csv:"lastcall"`
	// Tried is false if the filter found fewer than MinCalls pairs.
	Tried bool `csv:"tried"`
	// PackedSize is the size of the packed file with this filter, header
	// included. It's 0 if the filter wasn't tried.
	PackedSize int `csv:"packed_size"`
}

// Report describes the choices Pack made.
type Report struct {
	// Scans has one entry for the unfiltered candidate and one for each
	// filter in Options.Filters, in the order they were tried.
	Scans []ScanResult
	// Header is the header of the packed file that was returned.
	Header Header
}

// Pack filters and compresses `code`. Every filter in opts.Filters that finds
// at least opts.MinCalls pairs is tried along with no filter at all, and the
// smallest result is returned. `opts` may be nil.
func Pack(code []byte, opts *Options) ([]byte, *Report, error) {
	opts = withDefaults(opts)

	if len(code) == 0 {
		return nil, nil, rvpack.ErrCantPack.WithMessage("nothing to pack")
	}
	size, err := membuffer.MemSize(1, uint64(len(code)), 0, 0)
	if err != nil {
		return nil, nil, err
	}

	staged, err := opts.Allocator.NewWithSize(size)
	if err != nil {
		return nil, nil, err
	}
	defer staged.Free()
	copy(staged.Bytes(), code)

	header := NewHeader()
	header.Method = opts.Method
	header.UncompressedSize = uint32(size)
	header.Checksum = blake3.Sum256(code)

	report := &Report{}
	var best []byte

	candidates := append([]rvpack.Filter{filter.Identity{}}, opts.Filters...)
	for _, f := range candidates {
		scan, err := filter.Apply(f, staged, rvpack.ModeScan, false)
		if err != nil {
			return nil, nil, err
		}

		result := ScanResult{
			Filter:   f.ID(),
			Calls:    scan.Calls,
			Noncalls: scan.Noncalls,
			Lastcall: scan.Lastcall,
		}
		if f.ID() != rvpack.FilterNone && scan.Calls < opts.MinCalls {
			opts.Logger.Printf(
				"%s: skipped, %d calls < %d", f.Name(), scan.Calls, opts.MinCalls)
			report.Scans = append(report.Scans, result)
			continue
		}

		packed, err := packWith(f, staged, header, opts)
		if err != nil {
			return nil, nil, err
		}
		result.Tried = true
		result.PackedSize = len(packed)
		report.Scans = append(report.Scans, result)

		opts.Logger.Printf(
			"%s: %d calls, %d noncalls, %d -> %d bytes",
			f.Name(),
			scan.Calls,
			scan.Noncalls,
			size,
			len(packed),
		)
		if best == nil || len(packed) < len(best) {
			best = packed
		}
	}

	report.Header, err = ParseHeader(best)
	if err != nil {
		return nil, nil, rvpack.ErrInternal.Wrap(err)
	}
	return best, report, nil
}

// packWith produces a complete packed file using one filter. `staged` holds
// the original code and is left unchanged.
func packWith(
	f rvpack.Filter, staged *membuffer.Buffer, header Header, opts *Options,
) ([]byte, error) {
	work, err := opts.Allocator.NewWithSize(uint64(staged.Size()))
	if err != nil {
		return nil, err
	}
	defer work.Free()
	copy(work.Bytes(), staged.Bytes())

	ctx, err := filter.Apply(f, work, rvpack.ModeFilter, false)
	if err != nil {
		return nil, err
	}

	compressed := opts.Allocator.New()
	defer compressed.Free()
	if err = compressed.AllocForCompression(header.UncompressedSize, 0); err != nil {
		return nil, err
	}
	n, err := compression.CompressToBuffer(opts.Method, work.Bytes(), compressed)
	if err != nil {
		return nil, err
	}

	header.Filter = f.ID()
	header.Calls = uint32(ctx.Calls)
	header.CompressedSize = uint32(n)
	encoded, err := header.MarshalBinary()
	if err != nil {
		return nil, err
	}

	payload, err := compressed.SubRef(0, uint64(n))
	if err != nil {
		return nil, err
	}
	return append(encoded, payload...), nil
}

// PackFromReader reads all of `r` and packs it. Input larger than
// [membuffer.RSizeMax] is rejected without reading all of it.
func PackFromReader(r io.Reader, opts *Options) ([]byte, *Report, error) {
	code, err := io.ReadAll(io.LimitReader(r, membuffer.RSizeMax+1))
	if err != nil {
		return nil, nil, err
	}
	if len(code) > membuffer.RSizeMax {
		return nil, nil, rvpack.ErrCantPack.WithMessage(
			fmt.Sprintf("input exceeds %d bytes", membuffer.RSizeMax))
	}
	return Pack(code, opts)
}
