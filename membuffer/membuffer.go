// Package membuffer provides Buffer, an exclusively-owned heap region used to
// stage code while it's being filtered, compressed or decompressed.
//
// Slices already stop most overruns, so the guard words a Buffer places around
// its payload are a diagnostic layer: they catch writes that went through a
// wider slice of the backing array, or through unsafe code. Guards are on by
// default and forced off in builds instrumented with -asan or -msan.
package membuffer

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"unsafe"

	"github.com/dargueta/rvpack"
	"github.com/hashicorp/go-multierror"
	"github.com/noxer/bytewriter"
	"github.com/xaionaro-go/bytesextra"
)

// Guard layout, relative to the start of the payload:
//
//	-8  size of the payload
//	-4  magic1(address of payload)
//	+n  magic2(address of payload)
//	+n+4  allocation sequence number
//
// Bytes -16 to -9 and n+8 to n+15 are padding.
const (
	guardBefore = 16
	guardAfter  = 16
	magicSeed   = 0xfefdbeeb
	magicMix    = 0x88224411
)

// AbortFunc is called when a buffer's guards are found corrupted while it's
// being freed. It's not expected to return.
type AbortFunc func(err error)

// exitSoftware is EX_SOFTWARE from sysexits.h.
const exitSoftware = 70

func defaultAbort(err error) {
	log.Printf("membuffer: fatal: %s", err.Error())
	os.Exit(exitSoftware)
}

// Allocator creates buffers and keeps the statistics for all of them.
type Allocator struct {
	// Stats is updated on every allocation and deallocation.
	Stats *Stats
	// Guards enables the guard words around each new buffer. It has no effect
	// in sanitizer builds.
	Guards bool
	// MaxActiveBytes, if nonzero, limits the number of payload bytes that may
	// be allocated at the same time. Allocations past the limit fail with
	// [rvpack.ErrOutOfMemory].
	MaxActiveBytes uint64
	// Abort is called when corruption is detected during Free.
	Abort AbortFunc
	// Logger receives allocation traces. It discards everything by default.
	Logger *log.Logger
}

// NewAllocator creates an allocator with fresh statistics and guards enabled.
func NewAllocator() *Allocator {
	return &Allocator{
		Stats:  &Stats{},
		Guards: guardsSupported,
		Abort:  defaultAbort,
		Logger: log.New(io.Discard, "membuffer: ", log.LstdFlags),
	}
}

// New returns an unallocated buffer owned by this allocator.
func (a *Allocator) New() *Buffer {
	return &Buffer{alloc: a}
}

// NewWithSize returns a buffer with `bytes` bytes already allocated.
func (a *Allocator) NewWithSize(bytes uint64) (*Buffer, error) {
	b := a.New()
	if err := b.Alloc(bytes); err != nil {
		return nil, err
	}
	return b, nil
}

// noCopy makes `go vet` complain about Buffers being copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Buffer is a heap allocation with guard words on either side of its payload.
//
// A Buffer is either unallocated (no storage, size 0) or allocated. It must
// not be copied and is not safe for concurrent use.
type Buffer struct {
	noCopy  noCopy
	alloc   *Allocator
	raw     []byte
	ptr     []byte
	size    uint64
	guarded bool
}

func magic1(addr uint32) uint32 {
	return (addr ^ magicSeed) | 1
}

func magic2(addr uint32) uint32 {
	return (addr ^ magicSeed ^ magicMix) | 1
}

// payloadAddress returns the low 32 bits of the payload's address. The Go
// heap doesn't move objects, so this is stable for the buffer's lifetime.
func (b *Buffer) payloadAddress() uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b.ptr))))
}

// Alloc allocates `bytes` bytes of storage. It fails if the size is 0 or
// larger than [RSizeMax], or if the buffer is already allocated; an allocated
// buffer must be freed first.
func (b *Buffer) Alloc(bytes uint64) error {
	if b.ptr != nil {
		return rvpack.ErrInternal.WithMessage(
			fmt.Sprintf("buffer already allocated (%d bytes)", b.size))
	}
	if bytes == 0 {
		return rvpack.ErrCantPack.WithMessage("invalid allocation size 0")
	}

	size, err := MemSize(1, bytes, 0, 0)
	if err != nil {
		return err
	}

	stats := b.alloc.Stats
	if b.alloc.MaxActiveBytes != 0 && stats.TotalActiveBytes+size > b.alloc.MaxActiveBytes {
		return rvpack.ErrOutOfMemory.WithMessage(
			fmt.Sprintf(
				"can't allocate %d bytes: %d of %d already in use",
				size,
				stats.TotalActiveBytes,
				b.alloc.MaxActiveBytes,
			),
		)
	}

	guarded := b.alloc.Guards && guardsSupported
	if guarded {
		b.raw = make([]byte, size+guardBefore+guardAfter)
		// Clip the capacity so that appending to the payload reallocates
		// instead of running into the trailing guard.
		b.ptr = b.raw[guardBefore : guardBefore+size : guardBefore+size]
	} else {
		b.raw = make([]byte, size)
		b.ptr = b.raw[:size:size]
	}
	b.size = size
	b.guarded = guarded

	if guarded {
		addr := b.payloadAddress()
		n := guardBefore + size
		binary.NativeEndian.PutUint32(b.raw[guardBefore-8:], uint32(size))
		binary.NativeEndian.PutUint32(b.raw[guardBefore-4:], magic1(addr))
		binary.NativeEndian.PutUint32(b.raw[n:], magic2(addr))
		binary.NativeEndian.PutUint32(b.raw[n+4:], uint32(stats.AllocCounter))
	}

	stats.recordAlloc(size)
	b.alloc.Logger.Printf("alloc %d bytes, guarded=%t, seq=%d", size, guarded, stats.AllocCounter)
	return b.Validate()
}

// AllocForCompression allocates enough space to hold the compressed form of
// uncompressedSize bytes plus `extra`. See [SizeForCompression].
func (b *Buffer) AllocForCompression(uncompressedSize, extra uint32) error {
	bytes, err := SizeForCompression(uncompressedSize, extra)
	if err != nil {
		return err
	}
	return b.Alloc(uint64(bytes))
}

// AllocForDecompression allocates uncompressedSize + extra bytes. See
// [SizeForDecompression].
func (b *Buffer) AllocForDecompression(uncompressedSize, extra uint32) error {
	bytes, err := SizeForDecompression(uncompressedSize, extra)
	if err != nil {
		return err
	}
	return b.Alloc(uint64(bytes))
}

// Free releases the buffer's storage. Freeing an unallocated buffer does
// nothing.
//
// Corrupted guards can't be reported as an error from here, so they're passed
// to the allocator's Abort function instead, which by default terminates the
// program.
func (b *Buffer) Free() {
	if b.ptr == nil {
		return
	}

	if err := b.Validate(); err != nil {
		b.alloc.Abort(rvpack.ErrInternal.Wrap(err))
	}

	b.alloc.Stats.recordDealloc(b.size)
	if b.guarded {
		n := guardBefore + b.size
		clear(b.raw[guardBefore-8 : guardBefore])
		clear(b.raw[n : n+8])
	}
	b.alloc.Logger.Printf("free %d bytes", b.size)

	b.raw = nil
	b.ptr = nil
	b.size = 0
	b.guarded = false
}

// Validate checks that the buffer is allocated and, if guards are enabled,
// that none of them have been overwritten. Every damaged guard is reported.
func (b *Buffer) Validate() error {
	if b.ptr == nil {
		return rvpack.ErrInternal.WithMessage("block not allocated")
	}
	if !b.guarded {
		return nil
	}

	var result *multierror.Error
	addr := b.payloadAddress()
	n := guardBefore + b.size

	if binary.NativeEndian.Uint32(b.raw[guardBefore-4:]) != magic1(addr) {
		result = multierror.Append(
			result,
			rvpack.ErrInternal.WithMessage("memory clobbered before allocated block 1 (offset -4)"),
		)
	}
	if binary.NativeEndian.Uint32(b.raw[guardBefore-8:]) != uint32(b.size) {
		result = multierror.Append(
			result,
			rvpack.ErrInternal.WithMessage("memory clobbered before allocated block 2 (offset -8)"),
		)
	}
	if binary.NativeEndian.Uint32(b.raw[n:]) != magic2(addr) {
		result = multierror.Append(
			result,
			rvpack.ErrInternal.WithMessage(
				fmt.Sprintf("memory clobbered past end of allocated block (offset %#x)", b.size)),
		)
	}
	return result.ErrorOrNil()
}

// checkRange makes sure [offset, offset+length) is within the payload and
// doesn't wrap around.
func (b *Buffer) checkRange(what string, offset, length uint64) error {
	end := offset + length
	if end > b.size || end < offset {
		return rvpack.ErrCantPack.Wrap(
			rvpack.ErrOutOfRange.WithMessage(
				fmt.Sprintf("%s %#x %#x for %#x bytes", what, offset, length, b.size)))
	}
	return nil
}

// Fill sets `length` bytes starting at `offset` to `value`.
func (b *Buffer) Fill(offset, length uint64, value byte) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := b.checkRange("fill", offset, length); err != nil {
		return err
	}

	region := b.ptr[offset : offset+length]
	for i := range region {
		region[i] = value
	}
	return nil
}

// Clear zeroes the whole payload.
func (b *Buffer) Clear() error {
	return b.Fill(0, b.size, 0)
}

// SubRef returns a view of `length` bytes starting at `offset`, without
// copying. The range is checked once, when the view is created. The view's
// capacity is clipped to its length.
func (b *Buffer) SubRef(offset, length uint64) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := b.checkRange("bad subref", offset, length); err != nil {
		return nil, err
	}
	end := offset + length
	return b.ptr[offset:end:end], nil
}

// Bytes returns the whole payload, or nil if the buffer isn't allocated.
func (b *Buffer) Bytes() []byte {
	return b.ptr
}

// Size returns the size of the payload in bytes.
func (b *Buffer) Size() int {
	return int(b.size)
}

// IsAllocated reports whether the buffer currently owns storage.
func (b *Buffer) IsAllocated() bool {
	return b.ptr != nil
}

// Stream returns a seekable stream over the payload. Reads stop at the end of
// the payload.
func (b *Buffer) Stream() (io.ReadWriteSeeker, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return bytesextra.NewReadWriteSeeker(b.ptr), nil
}

// Writer returns a writer that fills the payload from the start and fails
// once it's full.
func (b *Buffer) Writer() (io.Writer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return bytewriter.New(b.ptr), nil
}
