package format

import "encoding/binary"

// Binary encoding utilities for little-endian words.
//
// The simulated DRAM image is a flat byte slice; page-table entries and
// descriptor fields are 64-bit little-endian words inside it, matching the
// byte order of the RV64 target. encoding/binary is already optimal here:
// the compiler inlines these calls to single loads and stores.

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}
