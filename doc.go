// Package rvpack holds the shared types for the rvpack executable-compression
// toolkit: the filter interface that code transforms implement and the error
// family returned by every subpackage.
//
// The interesting parts live in subpackages:
//
//   - membuffer: guarded staging buffers and worst-case size estimates.
//   - filter: reversible transforms for RISC-V code, currently AUIPC pairs.
//   - utilities/compression: the compressors the packer hands data to.
//   - pack: the pack/unpack pipeline tying the pieces together.
package rvpack
