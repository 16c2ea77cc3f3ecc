// Package compression compresses staged code for packing.
//
// Five general-purpose methods are supported. zstd is the default. gzip and
// snappy are streaming formats like zstd. LZO1X and LZSS are block formats
// that need the decompressed size up front, so their output is prefixed with
// it. None of them know anything about machine code; the filters in package
// filter are what make code compress well.
//
// Both methods wrap plain [io.Reader] and [io.Writer] streams. The
// ...ToBuffer variants write into a [membuffer.Buffer] so that overflowing the
// space reserved by [membuffer.SizeForCompression] is an error rather than a
// reallocation.
package compression
