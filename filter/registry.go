// Package filter implements reversible transforms that make machine code more
// compressible, and a registry to look them up by the ID stored in packed
// files.
package filter

import (
	"fmt"

	"github.com/dargueta/rvpack"
	"github.com/dargueta/rvpack/membuffer"
)

// Identity is the filter that does nothing. Packed files record it when no
// filter was worth applying.
type Identity struct{}

func (Identity) ID() rvpack.FilterID {
	return rvpack.FilterNone
}

func (Identity) Name() string {
	return "none"
}

func (Identity) Run(ctx *rvpack.FilterContext) {
	ctx.Calls = 0
	ctx.Noncalls = 0
	ctx.Lastcall = 0
}

var registry = map[rvpack.FilterID]rvpack.Filter{
	rvpack.FilterNone:  Identity{},
	rvpack.FilterAUIPC: NewAUIPC(),
}

// Lookup returns the filter with the given ID.
func Lookup(id rvpack.FilterID) (rvpack.Filter, error) {
	f, ok := registry[id]
	if !ok {
		return nil, rvpack.ErrNotSupported.WithMessage(
			fmt.Sprintf("unknown filter id %#02x", uint8(id)))
	}
	return f, nil
}

// LookupName returns the filter with the given name.
func LookupName(name string) (rvpack.Filter, error) {
	for _, f := range registry {
		if f.Name() == name {
			return f, nil
		}
	}
	return nil, rvpack.ErrNotSupported.WithMessage(fmt.Sprintf("unknown filter %q", name))
}

// All returns every registered filter that transforms data, in ID order. The
// identity filter isn't included.
func All() []rvpack.Filter {
	return []rvpack.Filter{registry[rvpack.FilterAUIPC]}
}

// Apply runs `f` over the whole payload of `mb`. The buffer is validated before
// and after the pass, so a filter that wrote outside its bounds is caught
// immediately.
func Apply(
	f rvpack.Filter, mb *membuffer.Buffer, mode rvpack.FilterMode, recordMatches bool,
) (*rvpack.FilterContext, error) {
	code, err := mb.SubRef(0, uint64(mb.Size()))
	if err != nil {
		return nil, err
	}

	ctx := rvpack.NewFilterContext(code, mode, recordMatches)
	f.Run(ctx)

	if err = mb.Validate(); err != nil {
		return nil, err
	}
	return ctx, nil
}
