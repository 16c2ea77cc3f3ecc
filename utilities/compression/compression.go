package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Method identifies a compression method in a packed-file header.
type Method uint8

const (
	MethodZstd   Method = 1
	MethodGzip   Method = 2
	MethodLZO    Method = 3
	MethodLZSS   Method = 4
	MethodSnappy Method = 5
)

// Methods lists every supported method.
var Methods = []Method{MethodZstd, MethodGzip, MethodLZO, MethodLZSS, MethodSnappy}

func (m Method) String() string {
	switch m {
	case MethodZstd:
		return "zstd"
	case MethodGzip:
		return "gzip"
	case MethodLZO:
		return "lzo"
	case MethodLZSS:
		return "lzss"
	case MethodSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// ParseMethod returns the method with the given name, ignoring case.
func ParseMethod(name string) (Method, error) {
	for _, m := range Methods {
		if strings.EqualFold(m.String(), name) {
			return m, nil
		}
	}
	return 0, rvpack.ErrNotSupported.WithMessage(
		fmt.Sprintf("unknown compression method %q", name))
}

// countingWriter counts the bytes that made it to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Compress compresses everything in `input` and writes it to `output`.
//
// The returned int64 gives the number of bytes written to the output stream. If
// an error occurred, the value is undefined and should not be used.
func Compress(method Method, input io.Reader, output io.Writer) (int64, error) {
	if codec, ok := blockCodecs[method]; ok {
		return compressBlock(codec, input, output)
	}
	counter := &countingWriter{w: output}

	var encoder io.WriteCloser
	var err error
	switch method {
	case MethodZstd:
		encoder, err = zstd.NewWriter(
			counter,
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
			zstd.WithEncoderConcurrency(1),
			zstd.WithZeroFrames(true),
		)
	case MethodGzip:
		// Code segments aren't large, so the speed difference between the
		// default and best levels doesn't matter.
		encoder, err = gzip.NewWriterLevel(counter, gzip.BestCompression)
	case MethodSnappy:
		encoder = snappy.NewBufferedWriter(counter)
	default:
		return 0, rvpack.ErrNotSupported.WithMessage(
			fmt.Sprintf("can't compress with %s", method))
	}
	if err != nil {
		return 0, err
	}

	if _, err = io.Copy(encoder, input); err != nil {
		encoder.Close()
		return counter.n, err
	}
	// Closing flushes the final block, so its error matters.
	err = encoder.Close()
	return counter.n, err
}

// Decompress takes data compressed with `method` and writes the original bytes
// to `output`.
//
// The returned int64 gives the number of bytes written to the output (i.e. the
// decompressed size). If an error occurred, the value is undefined and should
// not be used.
func Decompress(method Method, input io.Reader, output io.Writer) (int64, error) {
	if codec, ok := blockCodecs[method]; ok {
		return decompressBlock(codec, input, output)
	}

	switch method {
	case MethodZstd:
		decoder, err := zstd.NewReader(input, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return 0, err
		}
		defer decoder.Close()
		return io.Copy(output, decoder)

	case MethodGzip:
		gzReader, err := gzip.NewReader(input)
		if err != nil {
			return 0, err
		}
		defer gzReader.Close()
		return io.Copy(output, gzReader)

	case MethodSnappy:
		return io.Copy(output, snappy.NewReader(input))

	default:
		return 0, rvpack.ErrNotSupported.WithMessage(
			fmt.Sprintf("can't decompress %s", method))
	}
}

// CompressToBuffer compresses `src` into the payload of `dst`, which must
// already be allocated (usually with [membuffer.Buffer.AllocForCompression]).
// It returns the compressed size. Output that doesn't fit is an error.
func CompressToBuffer(method Method, src []byte, dst *membuffer.Buffer) (int, error) {
	writer, err := dst.Writer()
	if err != nil {
		return 0, err
	}

	n, err := Compress(method, bytes.NewReader(src), writer)
	if err != nil {
		return 0, rvpack.ErrCantPack.Wrap(err)
	}
	if err = dst.Validate(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// DecompressToBuffer decompresses `src` into the payload of `dst` and returns
// the number of bytes written. Output that doesn't fit is an error.
func DecompressToBuffer(method Method, src []byte, dst *membuffer.Buffer) (int, error) {
	stream, err := dst.Stream()
	if err != nil {
		return 0, err
	}

	n, err := Decompress(method, bytes.NewReader(src), stream)
	if err != nil {
		return 0, rvpack.ErrCantUnpack.Wrap(err)
	}
	if err = dst.Validate(); err != nil {
		return 0, err
	}
	return int(n), nil
}
