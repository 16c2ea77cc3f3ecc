// Package testing provides fixtures shared by the tests of the other packages:
// RISC-V instruction encoders and generators for code images.
package testing

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/dargueta/rvpack/utilities/compression"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// LoadCodeImage takes a compressed code image and returns a stream to access
// the uncompressed data.
//
//   - Writes to the stream do not affect `compressedImageBytes`.
//   - While the stream can be written to, its size is fixed to `expectedSize`.
//     Attempting to write past the end of this buffer will trigger an error.
func LoadCodeImage(
	t *testing.T,
	compressedImageBytes []byte,
	method compression.Method,
	expectedSize int,
) io.ReadWriteSeeker {
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	var image bytes.Buffer
	_, err := compression.Decompress(method, bytes.NewReader(compressedImageBytes), &image)
	require.NoErrorf(t, err, "failed to decompress %s image", method)

	require.Equal(t, expectedSize, image.Len(), "uncompressed image is wrong size")
	return bytesextra.NewReadWriteSeeker(image.Bytes())
}

// RandomBytes returns `size` pseudorandom bytes from a generator seeded with
// `seed`, so that failures can be reproduced.
func RandomBytes(seed int64, size int) []byte {
	rng := rand.New(rand.NewSource(seed))
	out := make([]byte, size)
	rng.Read(out)
	return out
}

// RandomCode generates `size` bytes that look like compiled RISC-V code: a
// mix of compressed and full-size instructions where roughly one in eight
// instructions starts an AUIPC pair. About half of the pairs are accepted by
// the AUIPC filter; the rest use an unsupported consumer or a different
// register. The last instruction may be cut short.
//
// Arguments:
//
//   - `seed` seeds the generator so that failures can be reproduced.
//   - `size` is the size of the image in bytes.
func RandomCode(seed int64, size int) []byte {
	rng := rand.New(rand.NewSource(seed))
	consumers := []ConsumerFunc{AddiConsumer, LoadConsumer, JumpConsumer}

	out := make([]byte, 0, size+8)
	for len(out) < size {
		switch rng.Intn(8) {
		case 0:
			reg := uint32(1 + rng.Intn(31))
			displacement := int32(rng.Intn(1<<22)) - 1<<21
			var w1, w2 uint32
			switch rng.Intn(4) {
			case 0:
				// Consumer reads the wrong register.
				w1, w2 = AUIPCPair(reg, displacement, AddiConsumer)
				w2 = EncodeADDI(reg, reg%31+1, int32(w2)>>20)
			case 1:
				w1, _ = AUIPCPair(reg, displacement, AddiConsumer)
				w2 = EncodeSD(RegA0, reg, 8)
			default:
				w1, w2 = AUIPCPair(reg, displacement, consumers[rng.Intn(len(consumers))])
			}
			out = append(out, Words(w1, w2)...)
		case 1, 2, 3:
			// Compressed instruction. The low two bits must not both be set.
			half := uint16(rng.Intn(1 << 16))
			if half&3 == 3 {
				half &^= 1
			}
			out = append(out, byte(half), byte(half>>8))
		default:
			word := rng.Uint32() | 3
			// No 6-byte encodings, and AUIPCs only come in pairs.
			if (word>>2)&3 == 3 || word&0x7f == OpAUIPC {
				word = Nop
			}
			out = append(out, Words(word)...)
		}
	}

	return out[:size]
}
