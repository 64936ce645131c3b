// Package crc32c computes the Castagnoli CRC-32 (CRC-32C) used to detect
// accidental corruption of the plaintext. It wraps the standard library's
// hash/crc32, which already dispatches to a hardware CRC32 instruction for
// the Castagnoli polynomial on amd64 and arm64; golang.org/x/sys/cpu is
// used only by HardwareAccelerated, which reports whether that hardware
// path is available on the running host.
package crc32c

import (
	"hash/crc32"

	"golang.org/x/sys/cpu"
)

var table = crc32.MakeTable(crc32.Castagnoli)

// Hash streams a CRC32C computation a chunk at a time.
type Hash struct {
	crc uint32
}

// New returns a Hash ready to accumulate bytes.
func New() *Hash {
	return &Hash{}
}

// Write folds p into the running checksum. It never returns an error.
func (h *Hash) Write(p []byte) (int, error) {
	h.crc = crc32.Update(h.crc, table, p)
	return len(p), nil
}

// Sum32 returns the CRC32C of the bytes written so far.
func (h *Hash) Sum32() uint32 {
	return h.crc
}

// Reset clears the accumulated checksum.
func (h *Hash) Reset() {
	h.crc = 0
}

// Checksum computes the CRC32C of p in one call.
func Checksum(p []byte) uint32 {
	return crc32.Checksum(p, table)
}

// HardwareAccelerated reports whether the host CPU exposes an instruction
// the standard library's crc32.Castagnoli path can use directly (SSE4.2 on
// x86, the CRC32 extension on arm64). The checksum itself is always
// correct regardless of this value; it only affects whether hash/crc32
// takes the scalar table-driven fallback.
func HardwareAccelerated() bool {
	return cpu.X86.HasSSE42 || cpu.ARM64.HasCRC32
}
