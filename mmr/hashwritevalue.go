package mmr

import (
	"encoding/binary"
)

// CountBytes encodes a node count as a hash input of the given width. The
// count is written big endian, most significant byte at the lowest address,
// and left padded with zeros.
func CountBytes(width int, count uint64) []byte {
	b := [8]byte{}
	binary.BigEndian.PutUint64(b[:], count)

	out := make([]byte, width)
	if width >= len(b) {
		copy(out[width-len(b):], b[:])
		return out
	}
	copy(out, b[len(b)-width:])
	return out
}
