package membuffer_test

import (
	"io"
	"testing"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer__Unallocated(t *testing.T) {
	alloc := membuffer.NewAllocator()
	mb := alloc.New()

	assert.False(t, mb.IsAllocated())
	assert.Nil(t, mb.Bytes())
	assert.Equal(t, 0, mb.Size())
	assert.ErrorIs(t, mb.Validate(), rvpack.ErrInternal)

	_, err := mb.SubRef(0, 0)
	assert.ErrorIs(t, err, rvpack.ErrInternal, "subref of unallocated buffer should fail")
	assert.ErrorIs(t, mb.Fill(0, 0, 0), rvpack.ErrInternal)

	// Freeing a buffer that was never allocated does nothing.
	mb.Free()
	mb.Free()
	assert.EqualValues(t, 0, alloc.Stats.DeallocCounter)
}

func TestBuffer__Core(t *testing.T) {
	const N = 64
	alloc := membuffer.NewAllocator()
	mb := alloc.New()

	assert.Error(t, mb.Alloc(0x30000000+1), "allocation past RSizeMax should fail")
	assert.Error(t, mb.Alloc(0), "zero-byte allocation should fail")
	assert.False(t, mb.IsAllocated())

	require.NoError(t, mb.Alloc(N))
	defer mb.Free()
	require.NoError(t, mb.Validate())
	assert.Equal(t, N, mb.Size())
	assert.Len(t, mb.Bytes(), N)
	assert.Equal(t, N, cap(mb.Bytes()), "payload capacity must be clipped")

	assert.ErrorIs(t, mb.Alloc(N), rvpack.ErrInternal, "re-allocation must fail")
}

func TestBuffer__SubRef(t *testing.T) {
	for i := uint64(1); i <= 16; i++ {
		alloc := membuffer.NewAllocator()
		mb, err := alloc.NewWithSize(i)
		require.NoError(t, err)

		_, err = mb.SubRef(0, 0)
		assert.NoError(t, err)
		_, err = mb.SubRef(0, i)
		assert.NoError(t, err)
		_, err = mb.SubRef(i, 0)
		assert.NoError(t, err)
		_, err = mb.SubRef(i-1, 1)
		assert.NoError(t, err)

		_, err = mb.SubRef(0, i+1)
		assert.ErrorIs(t, err, rvpack.ErrCantPack)
		_, err = mb.SubRef(i+1, 0)
		assert.ErrorIs(t, err, rvpack.ErrCantPack)
		_, err = mb.SubRef(i, 1)
		assert.ErrorIs(t, err, rvpack.ErrCantPack)
		_, err = mb.SubRef(^uint64(0), 0)
		assert.ErrorIs(t, err, rvpack.ErrCantPack)
		_, err = mb.SubRef(^uint64(0), i)
		assert.ErrorIs(t, err, rvpack.ErrCantPack, "wrap-around must be detected")
		assert.ErrorIs(t, err, rvpack.ErrOutOfRange)

		mb.Free()
	}
}

func TestBuffer__SubRefMessage(t *testing.T) {
	mb, err := membuffer.NewAllocator().NewWithSize(64)
	require.NoError(t, err)
	defer mb.Free()

	_, err = mb.SubRef(0x40, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x40 0x1")
	assert.ErrorIs(t, err, rvpack.ErrOutOfRange)
	assert.ErrorIs(t, err, rvpack.ErrCantPack)
}

func TestBuffer__SubRefIsAView(t *testing.T) {
	mb, err := membuffer.NewAllocator().NewWithSize(16)
	require.NoError(t, err)
	defer mb.Free()

	view, err := mb.SubRef(4, 8)
	require.NoError(t, err)
	require.Len(t, view, 8)
	assert.Equal(t, 8, cap(view))

	view[0] = 0xaa
	assert.EqualValues(t, 0xaa, mb.Bytes()[4])

	// Appending must not spill into the rest of the buffer.
	_ = append(view, 0x55)
	assert.EqualValues(t, 0, mb.Bytes()[12])
}

func TestBuffer__Fill(t *testing.T) {
	mb, err := membuffer.NewAllocator().NewWithSize(16)
	require.NoError(t, err)
	defer mb.Free()

	require.NoError(t, mb.Fill(0, 16, 0xff))
	require.NoError(t, mb.Fill(4, 4, 0x11))
	assert.Equal(
		t,
		[]byte{
			0xff, 0xff, 0xff, 0xff, 0x11, 0x11, 0x11, 0x11,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		},
		mb.Bytes(),
	)

	assert.NoError(t, mb.Fill(16, 0, 0x22))
	assert.ErrorIs(t, mb.Fill(15, 2, 0x22), rvpack.ErrCantPack)
	assert.ErrorIs(t, mb.Fill(^uint64(0), 2, 0x22), rvpack.ErrCantPack)
	assert.ErrorIs(t, mb.Fill(15, 2, 0x22), rvpack.ErrOutOfRange)

	require.NoError(t, mb.Clear())
	assert.Equal(t, make([]byte, 16), mb.Bytes())
}

func TestBuffer__Stats(t *testing.T) {
	alloc := membuffer.NewAllocator()

	mb1, err := alloc.NewWithSize(100)
	require.NoError(t, err)
	mb2, err := alloc.NewWithSize(28)
	require.NoError(t, err)

	assert.EqualValues(t, 2, alloc.Stats.AllocCounter)
	assert.EqualValues(t, 128, alloc.Stats.TotalBytes)
	assert.EqualValues(t, 128, alloc.Stats.TotalActiveBytes)
	assert.EqualValues(t, 2, alloc.Stats.ActiveAllocations())

	mb1.Free()
	assert.EqualValues(t, 1, alloc.Stats.DeallocCounter)
	assert.EqualValues(t, 128, alloc.Stats.TotalBytes)
	assert.EqualValues(t, 28, alloc.Stats.TotalActiveBytes)

	// A freed buffer can be allocated again.
	require.NoError(t, mb1.Alloc(4))
	assert.EqualValues(t, 3, alloc.Stats.AllocCounter)
	assert.EqualValues(t, 132, alloc.Stats.TotalBytes)

	mb1.Free()
	mb2.Free()
	assert.EqualValues(t, 0, alloc.Stats.TotalActiveBytes)
	assert.EqualValues(t, 0, alloc.Stats.ActiveAllocations())
}

func TestBuffer__MaxActiveBytes(t *testing.T) {
	alloc := membuffer.NewAllocator()
	alloc.MaxActiveBytes = 100

	mb1, err := alloc.NewWithSize(60)
	require.NoError(t, err)

	_, err = alloc.NewWithSize(41)
	assert.ErrorIs(t, err, rvpack.ErrOutOfMemory)

	mb2, err := alloc.NewWithSize(40)
	require.NoError(t, err)

	mb1.Free()
	mb2.Free()
}

func TestBuffer__AllocForCompression(t *testing.T) {
	alloc := membuffer.NewAllocator()

	mb := alloc.New()
	require.NoError(t, mb.AllocForCompression(1024, 0))
	assert.Equal(t, 1664, mb.Size())
	mb.Free()

	require.NoError(t, mb.AllocForDecompression(1024, 16))
	assert.Equal(t, 1040, mb.Size())
	mb.Free()

	assert.Error(t, mb.AllocForCompression(0, 0))
	assert.Error(t, mb.AllocForDecompression(0, 0))
	assert.False(t, mb.IsAllocated())
}

func TestBuffer__StreamAndWriter(t *testing.T) {
	mb, err := membuffer.NewAllocator().NewWithSize(8)
	require.NoError(t, err)
	defer mb.Free()

	writer, err := mb.Writer()
	require.NoError(t, err)
	n, err := writer.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = writer.Write([]byte{6, 7, 8, 9})
	assert.Error(t, err, "writing past the end of the buffer should fail")

	stream, err := mb.Stream()
	require.NoError(t, err)
	contents, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Len(t, contents, 8)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, contents[:5])
}
