package exitcode_test

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	_, notFound := os.Open("/this/path/does/not/exist")
	require.Error(t, notFound)

	tests := []struct {
		Name     string
		Err      error
		Expected exitcode.Code
	}{
		{"nil", nil, exitcode.OK},
		{"usage", rvpack.ErrInvalidArgument.WithMessage("expected 2 arguments"), exitcode.Usage},
		{"bad data", rvpack.ErrCantUnpack.WithMessage("checksum mismatch"), exitcode.DataErr},
		{
			"wrapped bad data",
			rvpack.ErrCantUnpack.Wrap(rvpack.ErrNotSupported.WithMessage("unknown filter")),
			exitcode.DataErr,
		},
		{"internal", rvpack.ErrInternal.WithMessage("bad guard"), exitcode.Software},
		{"oom", rvpack.ErrOutOfMemory, exitcode.OSErr},
		{"not supported", rvpack.ErrNotSupported.WithMessage("lzma"), exitcode.Unavailable},
		{"missing file", notFound, exitcode.NoInput},
		{"fmt wrapped", fmt.Errorf("can't load x: %w", notFound), exitcode.NoInput},
		{"other", errors.New("something else"), exitcode.Failure},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Expected, exitcode.FromError(test.Err))
		})
	}
}

func TestCode__String(t *testing.T) {
	assert.Equal(t, "Data format error", exitcode.DataErr.String())
	assert.Equal(t, "exit status 99 not recognized.", exitcode.Code(99).String())
}
