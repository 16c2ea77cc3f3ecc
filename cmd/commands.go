package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/filter"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/dargueta/rvpack/pack"
	"github.com/dargueta/rvpack/utilities/compression"
	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"
)

var filterFlag = &cli.StringFlag{
	Name:    "filter",
	Value:   "auipc",
	Usage:   "name of the filter to apply",
	EnvVars: []string{"RVPACK_FILTER"},
}

// scanRecord is one line of `scan --csv` output.
type scanRecord struct {
	File     string `csv:"file"`
	Size     int    `csv:"size"`
	Filter   string `csv:"filter"`
	Calls    int    `csv:"calls"`
	Noncalls int    `csv:"noncalls"`
	Lastcall int    `csv:"lastcall"`
}

func newAllocator(context *cli.Context) *membuffer.Allocator {
	alloc := membuffer.NewAllocator()
	alloc.MaxActiveBytes = context.Uint64("max-memory")
	if context.Bool("verbose") {
		alloc.Logger = log.New(os.Stderr, "membuffer: ", log.LstdFlags)
	}
	return alloc
}

func newLogger(context *cli.Context, prefix string) *log.Logger {
	if context.Bool("verbose") {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return log.New(io.Discard, prefix, log.LstdFlags)
}

func requireArgs(context *cli.Context, n int) error {
	if context.NArg() != n {
		return rvpack.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("expected %d arguments, got %d", n, context.NArg()))
	}
	return nil
}

// loadFile reads a whole file into a new staging buffer. The caller must free
// the buffer.
func loadFile(alloc *membuffer.Allocator, path string) (*membuffer.Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	mb, err := alloc.NewWithSize(uint64(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("can't load %s: %w", path, err)
	}

	stream, err := mb.Stream()
	if err == nil {
		_, err = io.CopyN(stream, file, info.Size())
	}
	if err != nil {
		mb.Free()
		return nil, err
	}
	return mb, nil
}

func scanFiles(context *cli.Context) error {
	if context.NArg() == 0 {
		return rvpack.ErrInvalidArgument.WithMessage("no files given")
	}
	alloc := newAllocator(context)

	var records []*scanRecord
	for _, path := range context.Args().Slice() {
		mb, err := loadFile(alloc, path)
		if err != nil {
			return err
		}

		for _, f := range filter.All() {
			ctx, err := filter.Apply(f, mb, rvpack.ModeScan, false)
			if err != nil {
				mb.Free()
				return err
			}
			records = append(
				records,
				&scanRecord{
					File:     path,
					Size:     mb.Size(),
					Filter:   f.Name(),
					Calls:    ctx.Calls,
					Noncalls: ctx.Noncalls,
					Lastcall: ctx.Lastcall,
				},
			)
		}
		mb.Free()
	}

	if context.Bool("csv") {
		output, err := gocsv.MarshalString(&records)
		if err != nil {
			return err
		}
		fmt.Print(output)
		return nil
	}

	for _, r := range records {
		fmt.Printf(
			"%s: %s: %d calls, %d noncalls, last call at %#x\n",
			r.File,
			r.Filter,
			r.Calls,
			r.Noncalls,
			r.Lastcall,
		)
	}
	return nil
}

func runFilter(context *cli.Context, mode rvpack.FilterMode) error {
	if err := requireArgs(context, 2); err != nil {
		return err
	}
	f, err := filter.LookupName(context.String("filter"))
	if err != nil {
		return err
	}

	alloc := newAllocator(context)
	mb, err := loadFile(alloc, context.Args().Get(0))
	if err != nil {
		return err
	}
	defer mb.Free()

	ctx, err := filter.Apply(f, mb, mode, false)
	if err != nil {
		return err
	}

	err = os.WriteFile(context.Args().Get(1), mb.Bytes(), 0o644)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s: %d calls, %d noncalls\n", mode, f.Name(), ctx.Calls, ctx.Noncalls)
	return nil
}

func filterFile(context *cli.Context) error {
	return runFilter(context, rvpack.ModeFilter)
}

func unfilterFile(context *cli.Context) error {
	return runFilter(context, rvpack.ModeUnfilter)
}

func packFile(context *cli.Context) error {
	if err := requireArgs(context, 2); err != nil {
		return err
	}
	method, err := compression.ParseMethod(context.String("method"))
	if err != nil {
		return err
	}

	opts := pack.DefaultOptions()
	opts.Method = method
	opts.MinCalls = context.Int("min-calls")
	opts.Allocator = newAllocator(context)
	opts.Logger = newLogger(context, "pack: ")
	if context.Bool("no-filter") {
		opts.Filters = nil
	}

	input, err := os.Open(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer input.Close()

	packed, report, err := pack.PackFromReader(input, opts)
	if err != nil {
		return err
	}
	if err = os.WriteFile(context.Args().Get(1), packed, 0o644); err != nil {
		return err
	}

	fmt.Printf(
		"Packed %d bytes to %d with %s/%s (%d calls).\n",
		report.Header.UncompressedSize,
		len(packed),
		report.Header.Filter,
		report.Header.Method,
		report.Header.Calls,
	)
	return nil
}

func unpackFile(context *cli.Context) error {
	if err := requireArgs(context, 2); err != nil {
		return err
	}

	opts := pack.DefaultOptions()
	opts.Allocator = newAllocator(context)
	opts.Logger = newLogger(context, "unpack: ")

	input, err := os.Open(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer input.Close()

	code, err := pack.UnpackFromReader(input, opts)
	if err != nil {
		return err
	}
	if err = os.WriteFile(context.Args().Get(1), code, 0o644); err != nil {
		return err
	}
	fmt.Printf("Unpacked %d bytes.\n", len(code))
	return nil
}

func printBounds(context *cli.Context) error {
	if context.NArg() == 0 {
		return rvpack.ErrInvalidArgument.WithMessage("no sizes given")
	}

	for _, arg := range context.Args().Slice() {
		size, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return rvpack.ErrInvalidArgument.Wrap(err)
		}

		compressBound, err := membuffer.SizeForCompression(uint32(size), 0)
		if err != nil {
			fmt.Printf("%d: %s\n", size, err)
			continue
		}
		decompressBound, err := membuffer.SizeForDecompression(uint32(size), 0)
		if err != nil {
			fmt.Printf("%d: %s\n", size, err)
			continue
		}
		fmt.Printf("%d: compress %d, decompress %d\n", size, compressBound, decompressBound)
	}
	return nil
}
