package main

import (
	"log"
	"os"

	"github.com/dargueta/rvpack/exitcode"
	"github.com/urfave/cli/v2"
)

func main() {
	cli := cli.App{
		Name:  "rvpack",
		Usage: "Filter and compress RISC-V code",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log allocations and packing decisions to stderr",
				EnvVars: []string{"RVPACK_VERBOSE"},
			},
			&cli.Uint64Flag{
				Name:    "max-memory",
				Usage:   "fail if staging buffers need more than this many bytes at once (0 = no limit)",
				EnvVars: []string{"RVPACK_MAX_MEMORY"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Count the instruction pairs each filter would transform",
				Action:    scanFiles,
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "print one CSV record per file and filter",
					},
				},
			},
			{
				Name:      "filter",
				Usage:     "Apply a filter to a file without compressing it",
				Action:    filterFile,
				ArgsUsage: "INPUT_FILE  OUTPUT_FILE",
				Flags:     []cli.Flag{filterFlag},
			},
			{
				Name:      "unfilter",
				Usage:     "Undo `filter`",
				Action:    unfilterFile,
				ArgsUsage: "INPUT_FILE  OUTPUT_FILE",
				Flags:     []cli.Flag{filterFlag},
			},
			{
				Name:      "pack",
				Usage:     "Filter and compress a file",
				Action:    packFile,
				ArgsUsage: "INPUT_FILE  OUTPUT_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "method",
						Value:   "zstd",
						Usage:   "compression method: zstd, gzip, lzo, lzss or snappy",
						EnvVars: []string{"RVPACK_METHOD"},
					},
					&cli.IntFlag{
						Name:    "min-calls",
						Value:   4,
						Usage:   "don't try filters that find fewer pairs than this",
						EnvVars: []string{"RVPACK_MIN_CALLS"},
					},
					&cli.BoolFlag{
						Name:  "no-filter",
						Usage: "compress without trying any filter",
					},
				},
			},
			{
				Name:      "unpack",
				Usage:     "Restore a file created by `pack`",
				Action:    unpackFile,
				ArgsUsage: "INPUT_FILE  OUTPUT_FILE",
			},
			{
				Name:      "bounds",
				Usage:     "Print the buffer sizes needed to pack and unpack inputs of the given sizes",
				Action:    printBounds,
				ArgsUsage: "SIZE...",
			},
		},
	}

	err := cli.Run(os.Args)
	if err != nil {
		log.Printf("fatal error: %s", err.Error())
		os.Exit(int(exitcode.FromError(err)))
	}
}
