package rvpack

import (
	"fmt"

	"github.com/boljen/go-bitmap"
)

// FilterID identifies a filter in a packed-file header. Zero means no filter
// was applied.
type FilterID uint8

const (
	FilterNone  FilterID = 0x00
	FilterAUIPC FilterID = 0xa6
)

func (id FilterID) String() string {
	switch id {
	case FilterNone:
		return "none"
	case FilterAUIPC:
		return "auipc"
	default:
		return fmt.Sprintf("filter(%#02x)", uint8(id))
	}
}

// FilterMode selects what a filter does with the buffer it's given.
type FilterMode int

const (
	// ModeScan only counts; the buffer is never modified.
	ModeScan FilterMode = iota
	// ModeFilter applies the forward transform in place.
	ModeFilter
	// ModeUnfilter applies the exact inverse of ModeFilter in place.
	ModeUnfilter
)

func (m FilterMode) String() string {
	switch m {
	case ModeScan:
		return "scan"
	case ModeFilter:
		return "filter"
	case ModeUnfilter:
		return "unfilter"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// FilterContext holds the input and the results of a single filter pass. It
// refers to the caller's buffer but never allocates or frees it.
type FilterContext struct {
	Buf  []byte
	Mode FilterMode

	// Calls is the number of instruction pairs the filter transformed (or, for
	// a scan, would transform).
	Calls int
	// Noncalls is the number of candidate pairs that were rejected.
	Noncalls int
	// Lastcall is the byte offset of the last pair counted in Calls.
	Lastcall int

	// Matches is optional. If it's not nil, bit ic/2 is set for every pair
	// counted in Calls. It must hold at least len(Buf)/2 bits.
	Matches bitmap.Bitmap
}

// NewFilterContext creates a context for one pass over buf. If recordMatches
// is true, Matches is allocated as well.
func NewFilterContext(buf []byte, mode FilterMode, recordMatches bool) *FilterContext {
	ctx := &FilterContext{Buf: buf, Mode: mode}
	if recordMatches {
		ctx.Matches = bitmap.New(len(buf)/2 + 1)
	}
	return ctx
}

// Reset clears the counters so the context can be reused for another pass.
func (ctx *FilterContext) Reset() {
	ctx.Calls = 0
	ctx.Noncalls = 0
	ctx.Lastcall = 0
	for i := range ctx.Matches {
		ctx.Matches[i] = 0
	}
}

// Filter is the interface for reversible code transforms.
//
// Filters never fail. Instructions they can't handle are left alone and
// counted in Noncalls. For every buffer, running ModeFilter followed by
// ModeUnfilter must restore the original bytes exactly.
type Filter interface {
	ID() FilterID
	Name() string
	Run(ctx *FilterContext)
}
