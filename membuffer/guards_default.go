//go:build !asan && !msan

package membuffer

// guardsSupported reports whether guard words may be placed around buffers.
// The address and memory sanitizers already track heap bounds precisely, so
// instrumented builds turn the guards off.
const guardsSupported = true
