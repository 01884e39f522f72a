package bigendian

import "unsafe"

//=============================================================================

// These provide byte swapping from BigEndian to LittleEndian.
// Much much faster than binary.BigEndian.UintNN.
// NOTE: If this code is used on a BigEndian machine, it should cause unit tests to fail.

// BE32 is a 32-bit big-endian value.
type BE32 [4]byte

// Uint32 returns the 32-bit value in LitteEndian.
func (b BE32) Uint32() uint32 {
	swap := [4]byte{b[3], b[2], b[1], b[0]}
	return *(*uint32)(unsafe.Pointer(&swap))
}

// BE64 is a 64-bit big-endian value, used for the NTP-like fixed-point
// timestamps carried in session file records: high 32 bits are seconds
// since the 1900 epoch, low 32 bits are a binary fraction of a second.
type BE64 [8]byte

// Uint64 returns the 64-bit value in LittleEndian.
func (b BE64) Uint64() uint64 {
	swap := [8]byte{b[7], b[6], b[5], b[4], b[3], b[2], b[1], b[0]}
	return *(*uint64)(unsafe.Pointer(&swap))
}

// PutBE64 encodes v into big-endian wire order.
func PutBE64(v uint64) BE64 {
	var b BE64
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
	return b
}

// PutBE32 encodes v into big-endian wire order.
func PutBE32(v uint32) BE32 {
	var b BE32
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return b
}
