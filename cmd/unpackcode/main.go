package main

import (
	"fmt"
	"os"

	"github.com/dargueta/rvpack/exitcode"
	"github.com/dargueta/rvpack/pack"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(
			os.Stderr,
			"Restore code packed with `rvpack pack`.\nUsage: %s input-file output-file\n",
			os.Args[0])
		os.Exit(int(exitcode.Usage))
	}

	sourceFilePath := os.Args[1]
	outputFilePath := os.Args[2]

	sourceFile, errSrc := os.Open(sourceFilePath)
	if errSrc != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to open file for reading: `%v`: %s\n", sourceFilePath, errSrc)
		os.Exit(int(exitcode.FromError(errSrc)))
	}
	defer sourceFile.Close()

	code, err := pack.UnpackFromReader(sourceFile, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error unpacking file: %s\n", err)
		os.Exit(int(exitcode.FromError(err)))
	}

	outFile, errOut := os.Create(outputFilePath)
	if errOut != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to open file for writing: `%v`: %s\n", outputFilePath, errOut)
		os.Exit(int(exitcode.CantCreate))
	}
	defer outFile.Close()

	nWritten, err := outFile.Write(code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %s\n", err)
		os.Exit(int(exitcode.IOErr))
	}

	fmt.Printf("Unpacked input file to %d bytes.\n", nWritten)
}
