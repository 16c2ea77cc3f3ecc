// Package exitcode maps errors to the process exit statuses defined by BSD's
// sysexits.h, so that scripts driving the rvpack binaries can tell a bad
// command line from a corrupted input file.
package exitcode

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dargueta/rvpack"
)

type Code int

const (
	OK          Code = 0
	Failure     Code = 1
	Usage       Code = 64
	DataErr     Code = 65
	NoInput     Code = 66
	Unavailable Code = 69
	Software    Code = 70
	OSErr       Code = 71
	CantCreate  Code = 73
	IOErr       Code = 74
)

var messagesByCode = map[Code]string{
	OK:          "Success",
	Failure:     "Failure",
	Usage:       "Command line usage error",
	DataErr:     "Data format error",
	NoInput:     "Cannot open input",
	Unavailable: "Service unavailable",
	Software:    "Internal software error",
	OSErr:       "System error",
	CantCreate:  "Can't create output file",
	IOErr:       "Input/output error",
}

func (c Code) String() string {
	message, ok := messagesByCode[c]
	if ok {
		return message
	}
	return fmt.Sprintf("exit status %d not recognized.", int(c))
}

// FromError picks the exit status for an error returned by a command. A nil
// error maps to OK.
func FromError(err error) Code {
	if err == nil {
		return OK
	}

	var pathErr *fs.PathError
	switch {
	case errors.Is(err, rvpack.ErrInvalidArgument):
		return Usage
	case errors.Is(err, rvpack.ErrCantUnpack):
		return DataErr
	case errors.Is(err, rvpack.ErrInternal):
		return Software
	case errors.Is(err, rvpack.ErrOutOfMemory):
		return OSErr
	case errors.Is(err, rvpack.ErrNotSupported):
		return Unavailable
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return NoInput
	case errors.As(err, &pathErr):
		return IOErr
	default:
		return Failure
	}
}
