//go:build asan || msan

package membuffer

const guardsSupported = false
