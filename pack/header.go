package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/utilities/compression"
	"github.com/noxer/bytewriter"
)

// Magic is the first four bytes of every packed file.
const Magic = "RVPK"

// FormatVersion is the only header version this package reads and writes.
const FormatVersion = 1

// HeaderSize is the size of the encoded header in bytes.
const HeaderSize = 52

// Header is the fixed-size prefix of a packed file. All integers are
// little-endian.
type Header struct {
	Magic    [4]byte
	Version  uint8
	Filter   rvpack.FilterID
	Method   compression.Method
	Reserved uint8
	// UncompressedSize is the size of the original code.
	UncompressedSize uint32
	// CompressedSize is the number of bytes following the header.
	CompressedSize uint32
	// Calls is the number of pairs the filter transformed. Unpacking checks
	// that the inverse pass restores the same number.
	Calls uint32
	// Checksum is the BLAKE3-256 hash of the original code.
	Checksum [32]byte
}

// NewHeader returns a header with the magic and version filled in.
func NewHeader() Header {
	h := Header{Version: FormatVersion}
	copy(h.Magic[:], Magic)
	return h
}

// MarshalBinary encodes the header into exactly HeaderSize bytes.
func (h *Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	if err := binary.Write(bytewriter.New(out), binary.LittleEndian, h); err != nil {
		return nil, rvpack.ErrInternal.Wrap(err)
	}
	return out, nil
}

// ParseHeader decodes and sanity-checks the header at the start of `data`.
// It doesn't check the payload itself.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf("truncated header: %d of %d bytes", len(data), HeaderSize))
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, rvpack.ErrCantUnpack.Wrap(err)
	}

	if string(h.Magic[:]) != Magic {
		return h, rvpack.ErrCantUnpack.WithMessage(fmt.Sprintf("bad magic %q", h.Magic[:]))
	}
	if h.Version != FormatVersion {
		return h, rvpack.ErrCantUnpack.WithMessage(
			fmt.Sprintf("unsupported format version %d", h.Version))
	}
	if h.Reserved != 0 {
		return h, rvpack.ErrCantUnpack.WithMessage("reserved header byte is not zero")
	}
	if h.UncompressedSize == 0 {
		return h, rvpack.ErrCantUnpack.WithMessage("uncompressed size is 0")
	}
	return h, nil
}
