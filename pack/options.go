package pack

import (
	"io"
	"log"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/filter"
	"github.com/dargueta/rvpack/membuffer"
	"github.com/dargueta/rvpack/utilities/compression"
)

// DefaultMinCalls is the number of transformable pairs below which a filter
// isn't worth trying.
const DefaultMinCalls = 4

// Options configures Pack and Unpack.
type Options struct {
	// Method is the compression method used for every candidate.
	Method compression.Method
	// Filters are tried in order, after the unfiltered candidate. An empty
	// slice packs without filtering.
	Filters []rvpack.Filter
	// MinCalls is the minimum number of transformable pairs a scan must find
	// for its filter to be tried.
	MinCalls int
	// Allocator owns every staging buffer. Its statistics are left for the
	// caller to inspect.
	Allocator *membuffer.Allocator
	// Logger receives one line per candidate. It discards everything by
	// default.
	Logger *log.Logger
}

// DefaultOptions returns options that try every registered filter with zstd.
func DefaultOptions() *Options {
	return &Options{
		Method:    compression.MethodZstd,
		Filters:   filter.All(),
		MinCalls:  DefaultMinCalls,
		Allocator: membuffer.NewAllocator(),
		Logger:    log.New(io.Discard, "pack: ", log.LstdFlags),
	}
}

// withDefaults fills in the fields the caller left empty. `opts` may be nil.
func withDefaults(opts *Options) *Options {
	defaults := DefaultOptions()
	if opts == nil {
		return defaults
	}

	result := *opts
	if result.Method == 0 {
		result.Method = defaults.Method
	}
	if result.Allocator == nil {
		result.Allocator = defaults.Allocator
	}
	if result.Logger == nil {
		result.Logger = defaults.Logger
	}
	return &result
}
