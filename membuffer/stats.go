package membuffer

import "fmt"

// Stats holds allocation counters for every Buffer created by one Allocator.
// The counters are informational only. They aren't synchronized, so an
// Allocator shared between goroutines needs external locking.
type Stats struct {
	// AllocCounter is the number of successful allocations. It's also used as
	// the sequence number stored in each buffer's trailing guard.
	AllocCounter uint64
	// DeallocCounter is the number of buffers freed.
	DeallocCounter uint64
	// TotalBytes is the cumulative number of payload bytes ever allocated.
	TotalBytes uint64
	// TotalActiveBytes is the number of payload bytes currently allocated.
	TotalActiveBytes uint64
}

// ActiveAllocations returns the number of buffers that are currently allocated.
func (s *Stats) ActiveAllocations() uint64 {
	return s.AllocCounter - s.DeallocCounter
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"allocs=%d deallocs=%d total_bytes=%d active_bytes=%d",
		s.AllocCounter,
		s.DeallocCounter,
		s.TotalBytes,
		s.TotalActiveBytes,
	)
}

func (s *Stats) recordAlloc(size uint64) {
	s.AllocCounter++
	s.TotalBytes += size
	s.TotalActiveBytes += size
}

func (s *Stats) recordDealloc(size uint64) {
	s.DeallocCounter++
	s.TotalActiveBytes -= size
}
