package pack_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/filter"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/dargueta/rvpack/pack"
	rvtest "github.com/dargueta/rvpack/testing"
	"github.com/dargueta/rvpack/utilities/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callHeavyCode returns code where every third instruction pair refers to one
// of a handful of symbols, which is what the AUIPC filter is good at.
func callHeavyCode(size int) []byte {
	targets := []int32{0x10000, 0x10400, 0x20000, 0x2a5f0}
	var code []byte
	for i := 0; len(code) < size; i++ {
		offset := int32(len(code))
		target := targets[i%len(targets)]
		code = append(code, rvtest.Words(rvtest.AUIPCPair(rvtest.RegRA, target-offset, rvtest.JumpConsumer))...)
		code = append(code, rvtest.Words(rvtest.EncodeADDI(rvtest.RegA0, rvtest.RegA0, int32(i%7)))...)
	}
	return code[:size]
}

func TestPackUnpack__RoundTrip(t *testing.T) {
	samples := map[string][]byte{
		"one byte":     {0x42},
		"call heavy":   callHeavyCode(64 << 10),
		"random code":  rvtest.RandomCode(5, 32<<10),
		"random bytes": rvtest.RandomBytes(6, 4096),
	}

	for _, method := range compression.Methods {
		for name, code := range samples {
			t.Run(method.String()+"/"+name, func(t *testing.T) {
				opts := pack.DefaultOptions()
				opts.Method = method

				packed, report, err := pack.Pack(code, opts)
				require.NoError(t, err)
				require.NotNil(t, report)
				assert.Equal(t, method, report.Header.Method)
				assert.EqualValues(t, len(code), report.Header.UncompressedSize)
				assert.EqualValues(t, len(packed)-pack.HeaderSize, report.Header.CompressedSize)

				unpacked, err := pack.Unpack(packed, opts)
				require.NoError(t, err)
				assert.Equal(t, code, unpacked)

				assert.Zero(
					t,
					opts.Allocator.Stats.ActiveAllocations(),
					"buffers leaked: %s",
					opts.Allocator.Stats,
				)
			})
		}
	}
}

func TestPack__ChoosesFilterForCallHeavyCode(t *testing.T) {
	code := callHeavyCode(64 << 10)
	packed, report, err := pack.Pack(code, nil)
	require.NoError(t, err)

	require.Len(t, report.Scans, 2)
	assert.Equal(t, rvpack.FilterNone, report.Scans[0].Filter)
	assert.True(t, report.Scans[0].Tried)
	assert.Equal(t, rvpack.FilterAUIPC, report.Scans[1].Filter)
	assert.True(t, report.Scans[1].Tried)
	assert.Greater(t, report.Scans[1].Calls, 1000)

	assert.Equal(t, rvpack.FilterAUIPC, report.Header.Filter)
	assert.EqualValues(t, report.Scans[1].Calls, report.Header.Calls)
	assert.Equal(t, report.Scans[1].PackedSize, len(packed))
	assert.Less(t, report.Scans[1].PackedSize, report.Scans[0].PackedSize)
}

func TestPack__SkipsFilterBelowMinCalls(t *testing.T) {
	code := bytes.Repeat(rvtest.Words(rvtest.Nop), 1024)
	packed, report, err := pack.Pack(code, nil)
	require.NoError(t, err)

	require.Len(t, report.Scans, 2)
	assert.False(t, report.Scans[1].Tried)
	assert.Zero(t, report.Scans[1].PackedSize)
	assert.Equal(t, rvpack.FilterNone, report.Header.Filter)

	unpacked, err := pack.Unpack(packed, nil)
	require.NoError(t, err)
	assert.Equal(t, code, unpacked)
}

func TestPack__NoFilters(t *testing.T) {
	opts := pack.DefaultOptions()
	opts.Filters = nil

	_, report, err := pack.Pack(callHeavyCode(4096), opts)
	require.NoError(t, err)
	require.Len(t, report.Scans, 1)
	assert.Equal(t, rvpack.FilterNone, report.Header.Filter)
}

func TestPack__Empty(t *testing.T) {
	_, _, err := pack.Pack(nil, nil)
	assert.ErrorIs(t, err, rvpack.ErrCantPack)
}

func TestPack__MemoryLimit(t *testing.T) {
	opts := pack.DefaultOptions()
	opts.Allocator.MaxActiveBytes = 1024

	_, _, err := pack.Pack(make([]byte, 4096), opts)
	assert.ErrorIs(t, err, rvpack.ErrOutOfMemory)
	assert.Zero(t, opts.Allocator.Stats.ActiveAllocations())
}

func TestPackFromReader(t *testing.T) {
	code := rvtest.RandomCode(8, 2048)
	packed, _, err := pack.PackFromReader(bytes.NewReader(code), nil)
	require.NoError(t, err)

	unpacked, err := pack.UnpackFromReader(bytes.NewReader(packed), nil)
	require.NoError(t, err)
	assert.Equal(t, code, unpacked)
}

func TestPack__CompressedCodeImage(t *testing.T) {
	code := callHeavyCode(16 << 10)

	for _, method := range compression.Methods {
		t.Run(method.String(), func(t *testing.T) {
			var compressed bytes.Buffer
			_, err := compression.Compress(method, bytes.NewReader(code), &compressed)
			require.NoError(t, err)

			stream := rvtest.LoadCodeImage(t, compressed.Bytes(), method, len(code))
			image, err := io.ReadAll(stream)
			require.NoError(t, err)
			require.Equal(t, code, image)

			ctx := rvpack.NewFilterContext(image, rvpack.ModeFilter, false)
			filter.NewAUIPC().Run(ctx)
			require.Greater(t, ctx.Calls, 0, "no pairs filtered in the image")
			calls := ctx.Calls

			ctx = rvpack.NewFilterContext(image, rvpack.ModeUnfilter, false)
			filter.NewAUIPC().Run(ctx)
			assert.Equal(t, calls, ctx.Calls)
			assert.Equal(t, code, image, "filter round trip damaged the image")

			packed, _, err := pack.Pack(image, nil)
			require.NoError(t, err)

			unpacked, err := pack.Unpack(packed, nil)
			require.NoError(t, err)
			assert.Equal(t, code, unpacked)
		})
	}
}

func packedSample(t *testing.T) []byte {
	packed, _, err := pack.Pack(callHeavyCode(8192), nil)
	require.NoError(t, err)
	return packed
}

func TestUnpack__Corruption(t *testing.T) {
	tests := []struct {
		Name   string
		Mangle func(packed []byte) []byte
	}{
		{"truncated header", func(p []byte) []byte { return p[:pack.HeaderSize-1] }},
		{"bad magic", func(p []byte) []byte { p[0] = 'X'; return p }},
		{"bad version", func(p []byte) []byte { p[4] = 2; return p }},
		{"unknown filter", func(p []byte) []byte { p[5] = 0x55; return p }},
		{"unknown method", func(p []byte) []byte { p[6] = 9; return p }},
		{"reserved byte", func(p []byte) []byte { p[7] = 1; return p }},
		{"zero size", func(p []byte) []byte {
			binary.LittleEndian.PutUint32(p[8:], 0)
			return p
		}},
		{"size too small", func(p []byte) []byte {
			binary.LittleEndian.PutUint32(p[8:], binary.LittleEndian.Uint32(p[8:])-1)
			return p
		}},
		{"size too large", func(p []byte) []byte {
			binary.LittleEndian.PutUint32(p[8:], binary.LittleEndian.Uint32(p[8:])+1)
			return p
		}},
		{"truncated payload", func(p []byte) []byte { return p[:len(p)-1] }},
		{"trailing garbage", func(p []byte) []byte { return append(p, 0) }},
		{"wrong call count", func(p []byte) []byte {
			binary.LittleEndian.PutUint32(p[16:], binary.LittleEndian.Uint32(p[16:])+1)
			return p
		}},
		{"wrong checksum", func(p []byte) []byte { p[20] ^= 1; return p }},
		{"damaged payload", func(p []byte) []byte { p[len(p)/2+pack.HeaderSize/2] ^= 0xff; return p }},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			packed := test.Mangle(packedSample(t))
			_, err := pack.Unpack(packed, nil)
			assert.ErrorIs(t, err, rvpack.ErrCantUnpack)
		})
	}
}

func TestHeader__Layout(t *testing.T) {
	h := pack.NewHeader()
	h.Filter = rvpack.FilterAUIPC
	h.Method = compression.MethodGzip
	h.UncompressedSize = 0x01020304
	h.CompressedSize = 0x0a0b0c0d
	h.Calls = 7
	h.Checksum[0] = 0xee
	h.Checksum[31] = 0xff

	encoded, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, encoded, pack.HeaderSize)

	assert.Equal(t, []byte("RVPK"), encoded[0:4])
	assert.Equal(t, []byte{1, 0xa6, 2, 0}, encoded[4:8])
	assert.Equal(t, []byte{4, 3, 2, 1}, encoded[8:12])
	assert.Equal(t, []byte{0x0d, 0x0c, 0x0b, 0x0a}, encoded[12:16])
	assert.Equal(t, []byte{7, 0, 0, 0}, encoded[16:20])
	assert.EqualValues(t, 0xee, encoded[20])
	assert.EqualValues(t, 0xff, encoded[51])

	parsed, err := pack.ParseHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestUnpack__SizeLimit(t *testing.T) {
	h := pack.NewHeader()
	h.Method = compression.MethodZstd
	h.UncompressedSize = membuffer.RSizeMax + 1
	encoded, err := h.MarshalBinary()
	require.NoError(t, err)

	_, err = pack.Unpack(encoded, nil)
	assert.ErrorIs(t, err, rvpack.ErrCantUnpack)
}
